package secret

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// systemStore backs secrets with the platform keychain.
type systemStore struct{}

// probe runs a live set/get/delete round trip. Some environments (Docker,
// headless CI, locked keychains) report success on writes that never land,
// so reading the value back is the only reliable test.
func (s *systemStore) probe() bool {
	const probeKey = "veto.backend.probe"
	const probeValue = "probe"

	if err := keyring.Set(service, probeKey, probeValue); err != nil {
		return false
	}
	got, err := keyring.Get(service, probeKey)
	_ = keyring.Delete(service, probeKey)
	return err == nil && got == probeValue
}

func (s *systemStore) Set(key, value string) error {
	if err := keyring.Set(service, key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Verify the write actually landed (macOS Keychain can fail silently).
	got, err := keyring.Get(service, key)
	if err != nil || got != value {
		return fmt.Errorf("%w: keychain write verification failed", ErrUnavailable)
	}
	return nil
}

func (s *systemStore) Get(key string) (string, error) {
	value, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (s *systemStore) Delete(key string) error {
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *systemStore) Exists(key string) bool {
	_, err := keyring.Get(service, key)
	return err == nil
}

func (s *systemStore) Backend() string { return "system" }
