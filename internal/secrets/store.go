// Package secrets stores provider API keys. It uses the OS keychain (macOS
// Keychain, Linux Secret Service) when available, with a file fallback for
// environments without one (CI, containers).
package secrets

import (
	"errors"
	"fmt"
	"strings"
)

// serviceName is the keychain service identifier for all swiftsmith secrets.
const serviceName = "swiftsmith"

// Store provides credential storage.
type Store interface {
	// Get retrieves a secret by key. Returns ErrNotFound if not present.
	Get(key string) (string, error)
	// Set stores a secret under the given key, replacing any existing value.
	Set(key, value string) error
	// Delete removes a secret. No error if the key doesn't exist.
	Delete(key string) error
}

// ErrNotFound is returned when a secret key does not exist.
var ErrNotFound = errors.New("secret not found")

// APIKey builds the canonical key for a provider's API key, e.g.
// "anthropic/api_key".
func APIKey(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "/api_key"
}

// New returns the best available Store for the current environment. It
// tries the OS keychain first and falls back to a file under dir.
func New(dir string) Store {
	ks := newKeychainStore()
	probeKey := "__swiftsmith_probe__"
	if err := ks.Set(probeKey, "ok"); err != nil {
		return newFileStore(dir)
	}
	_ = ks.Delete(probeKey)
	return ks
}

// Lookup returns the stored key for provider, or "" when none is stored.
// Errors other than ErrNotFound are returned.
func Lookup(s Store, provider string) (string, error) {
	v, err := s.Get(APIKey(provider))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s key: %w", provider, err)
	}
	return v, nil
}

// Mask hides all but the last four characters of a secret for display.
func Mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", 8) + v[len(v)-4:]
}
