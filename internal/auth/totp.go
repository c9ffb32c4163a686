package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/veto-sh/veto/internal/secret"
)

const totpIssuer = "veto"

// SetupTOTP generates a new RFC 6238 seed, stores it, and returns the key
// for QR/manual enrollment. Google Authenticator compatible: SHA1, 6 digits,
// 30 second period.
func SetupTOTP(store secret.Store, account string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP seed: %w", err)
	}
	if err := store.Set(secret.KeyTOTPSecret, key.Secret()); err != nil {
		return nil, fmt.Errorf("failed to store TOTP seed: %w", err)
	}
	return key, nil
}

// DeleteTOTP removes the stored seed.
func DeleteTOTP(store secret.Store) error {
	if err := store.Delete(secret.KeyTOTPSecret); err != nil && !errors.Is(err, secret.ErrNotFound) {
		return err
	}
	return nil
}

// CheckTOTP validates a 6-digit code against the stored seed with one step
// of clock-skew tolerance in each direction.
func CheckTOTP(store secret.Store, code string) (bool, error) {
	seed, err := store.Get(secret.KeyTOTPSecret)
	if err != nil {
		if errors.Is(err, secret.ErrNotFound) {
			return false, fmt.Errorf("%w: TOTP not configured", ErrUnavailable)
		}
		return false, err
	}

	ok, err := totp.ValidateCustom(code, seed, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("TOTP validation failed: %w", err)
	}
	return ok, nil
}

// TOTP authenticates with a time-based one-time code.
type TOTP struct {
	Store secret.Store
}

func (t *TOTP) Name() string { return "totp" }

func (t *TOTP) Available() bool { return secret.HasTOTP(t.Store) }

func (t *TOTP) Verify(ctx context.Context, req *Request) (Decision, error) {
	code := req.Creds.TOTP
	if code == "" {
		if !req.Interactive {
			return NeedsInput, nil
		}
		entered, err := promptLine(fmt.Sprintf("Command: %s\nEnter 6-digit code: ", req.Command))
		if err != nil {
			return Denied, ErrCancelled
		}
		code = entered
	}

	ok, err := CheckTOTP(t.Store, code)
	if err != nil {
		return Denied, err
	}
	if !ok {
		return Denied, fmt.Errorf("invalid TOTP code")
	}
	return Approved, nil
}
