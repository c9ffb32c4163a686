package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfSalt is fixed; the derived key also mixes in the machine id.
	kdfSalt       = "veto-keyring-fallback-v1"
	kdfIterations = 100_000
	nonceSize     = 12
)

// fileStore keeps each secret as an independently encrypted blob under dir.
// AES-256-GCM with a PBKDF2 key derived from the machine identity, so blobs
// copied to another host do not decrypt.
type fileStore struct {
	dir string
}

func (f *fileStore) path(key string) string {
	name := strings.ReplaceAll(key, ".", "_") + ".enc"
	return filepath.Join(f.dir, name)
}

func (f *fileStore) Set(key, value string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	blob, err := f.encrypt([]byte(value))
	if err != nil {
		return err
	}

	// Write-then-rename so a concurrent reader never sees a half-written
	// blob and a crash mid-write leaves the previous value intact.
	path := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".secret-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (f *fileStore) Get(key string) (string, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	plain, err := f.decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (f *fileStore) Delete(key string) error {
	if err := os.Remove(f.path(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (f *fileStore) Exists(key string) bool {
	_, err := os.Stat(f.path(key))
	return err == nil
}

func (f *fileStore) Backend() string { return "file" }

func (f *fileStore) encrypt(plaintext []byte) ([]byte, error) {
	aead, err := f.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Nonce is prepended to the ciphertext.
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (f *fileStore) decrypt(data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, fmt.Errorf("%w: blob too short", ErrIntegrity)
	}

	aead, err := f.aead()
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return plain, nil
}

func (f *fileStore) aead() (cipher.AEAD, error) {
	key := deriveKey()
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return aead, nil
}

func deriveKey() []byte {
	password := machineID() + "-" + service
	return pbkdf2.Key([]byte(password), []byte(kdfSalt), kdfIterations, 32, sha256.New)
}

// machineID returns a stable per-host identifier for key derivation.
func machineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id
			}
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "veto-default-machine"
}
