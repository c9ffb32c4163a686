// Package challenge implements one-time challenge codes for high-risk
// commands invoked from non-interactive hook contexts.
//
// A challenge binds a short random code to the hash of one specific command.
// The code is delivered out-of-band (desktop notification, telegram) and the
// caller proves presence by echoing it back, optionally prefixed with a PIN.
// Codes are single-use and expire quickly.
package challenge

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	codeDigits = 4
	// TTL after which an unanswered challenge is void.
	TTL = 60 * time.Second
)

var (
	ErrNotFound = errors.New("no pending challenge for this command")
	ErrExpired  = errors.New("challenge expired")
	ErrUsed     = errors.New("challenge already used")
	ErrMismatch = errors.New("challenge response does not match")
)

// Challenge is one pending code, persisted as a JSON file named after the
// code so independent gate processes share state.
type Challenge struct {
	Code        string    `json:"code"`
	CommandHash string    `json:"command_hash"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Used        bool      `json:"used"`
}

// Manager issues and verifies challenges backed by a directory of JSON files.
type Manager struct {
	Dir string
	// now is swappable for tests.
	now func() time.Time
}

func NewManager(dir string) *Manager {
	return &Manager{Dir: dir, now: time.Now}
}

// HashCommand produces the stable identity used to bind a challenge (and a
// denial record) to one exact command string.
func HashCommand(command string) string {
	sum := sha256.Sum256([]byte(command))
	return hex.EncodeToString(sum[:])
}

// Issue creates a new challenge for the command and persists it. Expired
// leftovers are swept on the way in.
func (m *Manager) Issue(command string) (*Challenge, error) {
	if err := os.MkdirAll(m.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create challenge dir: %w", err)
	}
	m.sweep()

	code, err := randomCode()
	if err != nil {
		return nil, err
	}
	now := m.now()
	ch := &Challenge{
		Code:        code,
		CommandHash: HashCommand(command),
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTL),
	}
	if err := m.write(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Verify checks a response against the pending challenge for the command.
//
// The expected response depends on the authentication method: "pin" expects
// the PIN immediately followed by the code, everything else expects the bare
// code. pinCheck validates the PIN portion; it is only consulted for the pin
// method. A matching challenge is consumed whether or not the PIN is right.
func (m *Manager) Verify(command, response, method string, pinCheck func(pin string) (bool, error)) error {
	response = strings.TrimSpace(response)
	hash := HashCommand(command)

	ch, err := m.find(hash)
	if err != nil {
		return err
	}
	if ch.Used {
		return ErrUsed
	}
	if m.now().After(ch.ExpiresAt) {
		m.remove(ch.Code)
		return ErrExpired
	}

	if method == "pin" {
		if len(response) <= codeDigits {
			return ErrMismatch
		}
		pin, code := response[:len(response)-codeDigits], response[len(response)-codeDigits:]
		if code != ch.Code {
			return ErrMismatch
		}
		if err := m.consume(ch); err != nil {
			return err
		}
		ok, err := pinCheck(pin)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("invalid PIN")
		}
		return nil
	}

	if response != ch.Code {
		return ErrMismatch
	}
	return m.consume(ch)
}

// Pending returns the live challenge for a command, if any.
func (m *Manager) Pending(command string) (*Challenge, bool) {
	ch, err := m.find(HashCommand(command))
	if err != nil || ch.Used || m.now().After(ch.ExpiresAt) {
		return nil, false
	}
	return ch, true
}

// find returns the most recent live challenge for the hash. Concurrent gate
// processes can leave several files for one command; the newest unexpired,
// unused one is the code the user last received. A dead challenge is only
// returned when no live one exists, so Verify reports Used/Expired instead
// of not-found.
func (m *Manager) find(hash string) (*Challenge, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read challenge dir: %w", err)
	}
	now := m.now()
	var newest, newestLive *Challenge
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ch, err := m.read(filepath.Join(m.Dir, entry.Name()))
		if err != nil || ch.CommandHash != hash {
			continue
		}
		if newest == nil || ch.CreatedAt.After(newest.CreatedAt) {
			newest = ch
		}
		if !ch.Used && !now.After(ch.ExpiresAt) {
			if newestLive == nil || ch.CreatedAt.After(newestLive.CreatedAt) {
				newestLive = ch
			}
		}
	}
	if newestLive != nil {
		return newestLive, nil
	}
	if newest != nil {
		return newest, nil
	}
	return nil, ErrNotFound
}

func (m *Manager) consume(ch *Challenge) error {
	ch.Used = true
	if err := m.write(ch); err != nil {
		return err
	}
	m.remove(ch.Code)
	return nil
}

func (m *Manager) write(ch *Challenge) error {
	data, err := json.MarshalIndent(ch, "", "  ")
	if err != nil {
		return err
	}
	path := m.path(ch.Code)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write challenge: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *Manager) read(path string) (*Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (m *Manager) path(code string) string {
	return filepath.Join(m.Dir, code+".json")
}

func (m *Manager) remove(code string) {
	_ = os.Remove(m.path(code))
}

// sweep deletes expired challenge files.
func (m *Manager) sweep() {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		return
	}
	now := m.now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.Dir, entry.Name())
		ch, err := m.read(path)
		if err != nil || now.After(ch.ExpiresAt) {
			_ = os.Remove(path)
		}
	}
}

func randomCode() (string, error) {
	max := big.NewInt(10000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate challenge code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
