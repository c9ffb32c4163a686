package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/veto-sh/veto/internal/secret"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. These are fixed: verification re-derives with the
// parameters encoded in the stored hash string, so changing them only
// affects newly set PINs.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

const minPINLength = 4

// HashPIN derives an argon2id hash with a fresh random salt and returns it
// PHC-encoded along with the salt.
func HashPIN(pin string) (encoded, salt string, err error) {
	rawSalt := make([]byte, saltLen)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(pin), rawSalt, argonTime, argonMemory, argonThreads, argonKeyLen)
	b64 := base64.RawStdEncoding
	encoded = fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		b64.EncodeToString(rawSalt), b64.EncodeToString(key))
	return encoded, b64.EncodeToString(rawSalt), nil
}

// VerifyPIN checks a candidate PIN against a PHC-encoded argon2id hash.
// The derived keys are compared in constant time: no early exit on length
// or prefix differences.
func VerifyPIN(encoded, pin string) (bool, error) {
	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=...,t=...,p=...", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("malformed PIN hash")
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("malformed PIN hash parameters: %w", err)
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("malformed PIN hash salt: %w", err)
	}
	want, err := b64.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("malformed PIN hash key: %w", err)
	}

	got := argon2.IDKey([]byte(pin), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// SetPIN hashes and stores a new PIN.
func SetPIN(store secret.Store, pin string) error {
	if len(pin) < minPINLength {
		return fmt.Errorf("PIN must be at least %d characters", minPINLength)
	}
	encoded, salt, err := HashPIN(pin)
	if err != nil {
		return err
	}
	if err := store.Set(secret.KeyPINHash, encoded); err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}
	if err := store.Set(secret.KeyPINSalt, salt); err != nil {
		return fmt.Errorf("failed to store PIN salt: %w", err)
	}
	return nil
}

// DeletePIN removes the stored PIN. Missing keys are not an error.
func DeletePIN(store secret.Store) error {
	for _, key := range []string{secret.KeyPINHash, secret.KeyPINSalt} {
		if err := store.Delete(key); err != nil && !errors.Is(err, secret.ErrNotFound) {
			return err
		}
	}
	return nil
}

// CheckPIN verifies a candidate PIN against the stored hash.
func CheckPIN(store secret.Store, pin string) (bool, error) {
	encoded, err := store.Get(secret.KeyPINHash)
	if err != nil {
		if errors.Is(err, secret.ErrNotFound) {
			return false, fmt.Errorf("%w: PIN not configured", ErrUnavailable)
		}
		return false, err
	}
	return VerifyPIN(encoded, pin)
}

// PIN authenticates with a stored argon2id-hashed code.
type PIN struct {
	Store secret.Store
}

func (p *PIN) Name() string { return "pin" }

func (p *PIN) Available() bool { return secret.HasPIN(p.Store) }

func (p *PIN) Verify(ctx context.Context, req *Request) (Decision, error) {
	code := req.Creds.PIN
	if code == "" {
		if !req.Interactive {
			return NeedsInput, nil
		}
		entered, err := promptSecret(fmt.Sprintf("Command: %s\nEnter PIN", req.Command))
		if err != nil {
			return Denied, ErrCancelled
		}
		code = entered
	}

	ok, err := CheckPIN(p.Store, code)
	if err != nil {
		return Denied, err
	}
	if !ok {
		return Denied, fmt.Errorf("invalid PIN")
	}
	return Approved, nil
}
