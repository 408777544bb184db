// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// keysIndexSuffix is appended to the service name to form the key under
// which the JSON index of stored key names is kept. go-keyring cannot
// enumerate keys, so List works off this index.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store on the OS keyring via zalando/go-keyring:
// Keychain on macOS, secret-service (D-Bus) on Linux, Credential Manager
// on Windows.
type KeyringStore struct{}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if service == "" {
		return dowsererr.New(dowsererr.CodeSecretInputInvalid, "secrets: service must not be empty")
	}
	if key == "" {
		return dowsererr.New(dowsererr.CodeSecretInputInvalid, "secrets: key must not be empty")
	}

	if err := keyring.Set(service, key, value); err != nil {
		return dowsererr.Wrapf(err, dowsererr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	return s.addToIndex(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if service == "" {
		return "", dowsererr.New(dowsererr.CodeSecretInputInvalid, "secrets: service must not be empty")
	}
	if key == "" {
		return "", dowsererr.New(dowsererr.CodeSecretInputInvalid, "secrets: key must not be empty")
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", dowsererr.Errorf(dowsererr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", dowsererr.Wrapf(err, dowsererr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if service == "" {
		return dowsererr.New(dowsererr.CodeSecretInputInvalid, "secrets: service must not be empty")
	}
	if key == "" {
		return dowsererr.New(dowsererr.CodeSecretInputInvalid, "secrets: key must not be empty")
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return dowsererr.Errorf(dowsererr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return dowsererr.Wrapf(err, dowsererr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}

	return s.removeFromIndex(service, key)
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

// loadIndex reads the JSON key index for a service from the keyring.
func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	indexKey := service + keysIndexSuffix
	raw, err := keyring.Get(service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, dowsererr.Wrapf(err, dowsererr.CodeSecretStoreFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, dowsererr.Wrapf(err, dowsererr.CodeSecretStoreFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

// saveIndex writes the JSON key index for a service to the keyring. An
// empty index deletes the entry instead.
func (s *KeyringStore) saveIndex(service string, keys []string) error {
	indexKey := service + keysIndexSuffix

	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexKey); delErr != nil {
			slog.Debug("secrets: cleaning up empty key index failed", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return dowsererr.Wrapf(err, dowsererr.CodeSecretStoreFailure, "encoding key index for service %s", service)
	}

	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return dowsererr.Wrapf(err, dowsererr.CodeSecretStoreFailure, "saving key index for service %s", service)
	}
	return nil
}

// addToIndex adds a key to the service's key index, idempotently.
func (s *KeyringStore) addToIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if k == key {
			return nil
		}
	}

	return s.saveIndex(service, append(keys, key))
}

// removeFromIndex removes a key from the service's key index.
func (s *KeyringStore) removeFromIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}

	filtered := keys[:0]
	for _, k := range keys {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	return s.saveIndex(service, filtered)
}
