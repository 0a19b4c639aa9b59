package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// keychainStore wraps zalando/go-keyring.
type keychainStore struct{}

func newKeychainStore() *keychainStore {
	return &keychainStore{}
}

func (k *keychainStore) Get(key string) (string, error) {
	val, err := keyring.Get(serviceName, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return val, err
}

func (k *keychainStore) Set(key, value string) error {
	return keyring.Set(serviceName, key, value)
}

func (k *keychainStore) Delete(key string) error {
	if err := keyring.Delete(serviceName, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
