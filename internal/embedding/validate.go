// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package embedding

import (
	"context"
	"io"
	"net/http"
	"strings"

	dowsererr "github.com/dowser-dev/dowser/pkg/errors"
)

// ProviderName identifies a supported embedding provider for key validation.
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderGoogle ProviderName = "google"
	ProviderOllama ProviderName = "ollama"
)

// ValidateKey makes a lightweight HTTP call to the provider's models endpoint
// to confirm the API key is valid.
func ValidateKey(ctx context.Context, client *http.Client, provider ProviderName, key string) error {
	var (
		url     string
		headers map[string]string
	)

	switch provider {
	case ProviderOpenAI:
		url = "https://api.openai.com/v1/models"
		headers = map[string]string{
			"Authorization": "Bearer " + key,
		}
	case ProviderGoogle:
		// Google's Generative Language API authenticates via query parameter.
		// There is no header-based alternative, so the key will appear in
		// HTTP proxy/CDN access logs.
		url = "https://generativelanguage.googleapis.com/v1/models?key=" + key
	default:
		return dowsererr.Errorf(dowsererr.CodeEncoderKeyInvalid, "unknown provider: %s", provider)
	}

	return checkEndpoint(ctx, client, provider, url, headers)
}

// ValidateKeyWithURL is a testable version of ValidateKey that accepts an
// explicit URL. When url is non-empty it overrides the provider default.
func ValidateKeyWithURL(ctx context.Context, client *http.Client, provider ProviderName, key, url string, headers map[string]string) error {
	if provider == "" || provider == "unknown" {
		return dowsererr.Errorf(dowsererr.CodeEncoderKeyInvalid, "unknown provider: %s", provider)
	}

	if url == "" {
		return ValidateKey(ctx, client, provider, key)
	}

	if headers == nil {
		headers = make(map[string]string)
	}
	if provider == ProviderOpenAI {
		headers["Authorization"] = "Bearer " + key
	}

	return checkEndpoint(ctx, client, provider, url, headers)
}

// ValidateEndpoint confirms an Ollama endpoint is reachable. Ollama has no
// API key; the check hits the local tags listing.
func ValidateEndpoint(ctx context.Context, client *http.Client, endpoint string) error {
	url := strings.TrimRight(endpoint, "/") + "/api/tags"
	return checkEndpoint(ctx, client, ProviderOllama, url, nil)
}

func checkEndpoint(ctx context.Context, client *http.Client, provider ProviderName, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return dowsererr.Errorf(dowsererr.CodeEncoderKeyCheckFailure, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return dowsererr.Errorf(dowsererr.CodeEncoderKeyCheckFailure, "validating %s: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return dowsererr.Errorf(dowsererr.CodeEncoderKeyInvalid, "invalid %s API key (HTTP %d)", provider, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return dowsererr.Errorf(dowsererr.CodeEncoderKeyCheckFailure, "%s validation failed (HTTP %d)", provider, resp.StatusCode)
	}

	return nil
}
