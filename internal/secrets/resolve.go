// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ProviderKeyURI returns the canonical keyring URI for a provider's API
// key, as written into dowser.yaml by the init wizard.
func ProviderKeyURI(provider string) string {
	return keyringScheme + Service + "/" + ProviderKey(provider)
}

// ParseKeyringURI extracts service and key from a keyring://service/key
// URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", dowsererr.Errorf(dowsererr.CodeSecretResolveInvalid, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", dowsererr.Errorf(dowsererr.CodeSecretResolveInvalid,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return parts[0], parts[1], nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Values that are not keyring URIs pass through unchanged.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", dowsererr.Wrapf(err, dowsererr.CodeSecretResolveFailure,
			"resolving keyring URI %q", value)
	}
	return secret, nil
}

// ResolveViperSecrets walks all keys in a Viper instance and resolves any
// string values that use the keyring:// URI scheme, in place. This is a
// post-load resolution step, not a Viper decoder hook.
//
// Every unresolvable URI is reported; a provider key that cannot be read
// at startup would otherwise surface as an opaque encode failure much
// later.
func ResolveViperSecrets(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			errs = append(errs, dowsererr.Wrapf(err, dowsererr.CodeSecretResolveFailure,
				"resolving config key %s from %s", key, val))
			continue
		}
		v.Set(key, resolved)
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return dowsererr.Join(errs...)
	}
}
