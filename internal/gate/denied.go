package gate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veto-sh/veto/internal/challenge"
)

// deniedTTL bounds how long a denial is remembered. An hour is long enough
// to stop an agent retry loop, short enough that the human is not locked out
// of a command they changed their mind about.
const deniedTTL = time.Hour

// DeniedMemory remembers commands a human explicitly denied so an automated
// caller cannot simply retry until the human slips. Records are per-session
// files; sessions never see each other's denials.
type DeniedMemory struct {
	Dir     string
	Session string
	now     func() time.Time
}

type deniedRecord struct {
	CommandHash string    `json:"command_hash"`
	Session     string    `json:"session"`
	Command     string    `json:"command"`
	DeniedAt    time.Time `json:"denied_at"`
}

// NewDeniedMemory scopes the memory to the given session ID; empty means the
// shared "global" session.
func NewDeniedMemory(dir, session string) *DeniedMemory {
	if session == "" {
		session = "global"
	}
	return &DeniedMemory{Dir: dir, Session: session, now: time.Now}
}

// SessionFromEnv reads VETO_SESSION_ID.
func SessionFromEnv() string {
	return os.Getenv("VETO_SESSION_ID")
}

func (d *DeniedMemory) path(hash string) string {
	return filepath.Join(d.Dir, d.Session+"-"+hash+".json")
}

// Mark records an explicit denial of the command.
func (d *DeniedMemory) Mark(command string) error {
	if err := os.MkdirAll(d.Dir, 0o700); err != nil {
		return err
	}
	rec := deniedRecord{
		CommandHash: challenge.HashCommand(command),
		Session:     d.Session,
		Command:     command,
		DeniedAt:    d.now(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	path := d.path(rec.CommandHash)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// IsDenied reports whether this exact command was denied in this session
// within the TTL. Expired records are removed on sight.
func (d *DeniedMemory) IsDenied(command string) bool {
	path := d.path(challenge.HashCommand(command))
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var rec deniedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = os.Remove(path)
		return false
	}
	if d.now().Sub(rec.DeniedAt) > deniedTTL {
		_ = os.Remove(path)
		return false
	}
	return true
}

// Forget drops the denial record for one command, if present.
func (d *DeniedMemory) Forget(command string) {
	_ = os.Remove(d.path(challenge.HashCommand(command)))
}

// Clear drops every record for this session.
func (d *DeniedMemory) Clear() error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), d.Session+"-") {
			continue
		}
		if err := os.Remove(filepath.Join(d.Dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
