// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

// Package secrets keeps embedding provider API keys out of config files.
// Keys live in the OS keyring and config values reference them through
// keyring:// URIs that are resolved after the config loads.
package secrets

// Service is the keyring service name under which dowser stores its
// secrets.
const Service = "dowser"

// Store provides secret storage operations. Implementations may use OS
// keyrings, encrypted files, or other backends.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// A missing key reports CodeSecretNotFound.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key. A missing
	// key reports CodeSecretNotFound.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// ProviderKey returns the keyring key name holding a provider's API key.
func ProviderKey(provider string) string {
	return provider + "_api_key"
}
