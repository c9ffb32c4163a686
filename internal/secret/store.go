// Package secret stores PIN hashes, TOTP seeds, and the Telegram bot token.
//
// The system keychain is preferred (macOS Keychain, Linux Secret Service,
// Windows Credential Manager). When the keychain fails a live round-trip
// self-test, an encrypted file store under the veto secrets directory is
// used instead. Secret values are never logged.
package secret

import (
	"errors"
)

// service is the keychain service name for all veto secrets.
const service = "veto"

// Logical secret keys. Stable identifiers; the file backend derives
// filenames from them.
const (
	KeyPINHash       = "veto.pin.hash"
	KeyPINSalt       = "veto.pin.salt"
	KeyTOTPSecret    = "veto.totp.secret"
	KeyTelegramToken = "veto.telegram.token"
)

var (
	// ErrNotFound: the key has no stored value.
	ErrNotFound = errors.New("secret not found")
	// ErrUnavailable: the backend cannot be reached at all.
	ErrUnavailable = errors.New("secret backend unavailable")
	// ErrIntegrity: the stored blob failed decryption or authentication.
	// Must be surfaced, never treated as absent.
	ErrIntegrity = errors.New("secret integrity check failed")
)

// Store is the secret storage contract shared by both backends.
type Store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
	Exists(key string) bool
	// Backend names the active backend ("system" or "file") for diagnostics.
	Backend() string
}

// Open selects a backend: the system keychain if a set/get/delete round trip
// succeeds, otherwise the encrypted file store rooted at secretsDir.
func Open(secretsDir string) Store {
	sys := &systemStore{}
	if sys.probe() {
		return sys
	}
	return NewFileStore(secretsDir)
}

// NewFileStore returns the encrypted file backend directly, bypassing the
// keychain probe. Used when the caller has already decided on a directory
// (tests, headless installs).
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir}
}

// HasPIN reports whether a PIN is configured.
func HasPIN(s Store) bool {
	return s.Exists(KeyPINHash) && s.Exists(KeyPINSalt)
}

// HasTOTP reports whether a TOTP seed is configured.
func HasTOTP(s Store) bool {
	return s.Exists(KeyTOTPSecret)
}

// HasTelegram reports whether a Telegram bot token is configured.
func HasTelegram(s Store) bool {
	return s.Exists(KeyTelegramToken)
}
