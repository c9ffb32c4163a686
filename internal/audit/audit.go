// Package audit maintains the append-only decision trail.
//
// Every gate decision is recorded as one human-readable line:
//
//	[2026-01-15 14:30:02] DENIED HIGH telegram "git push --force origin main"
//
// The file is append-only by contract: entries are written with O_APPEND in
// a single write so concurrent gate processes interleave at line granularity.
package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/veto-sh/veto/internal/models"
)

// Result of a gate decision as recorded in the trail.
type Result string

const (
	// ResultAllowed: the command was permitted to run.
	ResultAllowed Result = "ALLOWED"
	// ResultDenied: authentication refused the command.
	ResultDenied Result = "DENIED"
	// ResultBlocked: the gate stopped the command without a fresh human
	// decision (denied-command memory, configuration failure, credentials
	// still outstanding).
	ResultBlocked Result = "BLOCKED"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one decision record.
type Entry struct {
	Time    time.Time
	Result  Result
	Risk    models.RiskLevel
	Method  string
	Command string
}

// FormatLine renders an entry in the on-disk format.
func FormatLine(e Entry) string {
	return fmt.Sprintf("[%s] %s %s %s %q",
		e.Time.Format(timeLayout), e.Result, e.Risk, e.Method, e.Command)
}

// ParseLine parses one audit line. Lines that do not parse (a crash mid-write
// can leave a truncated final line) return an error and are skipped by Read.
func ParseLine(line string) (Entry, error) {
	var e Entry
	if !strings.HasPrefix(line, "[") {
		return e, fmt.Errorf("malformed audit line: %q", line)
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return e, fmt.Errorf("malformed audit line: %q", line)
	}
	ts, err := time.ParseInLocation(timeLayout, line[1:end], time.Local)
	if err != nil {
		return e, fmt.Errorf("malformed audit timestamp: %w", err)
	}
	rest := strings.TrimSpace(line[end+1:])

	fields := strings.SplitN(rest, " ", 4)
	if len(fields) != 4 {
		return e, fmt.Errorf("malformed audit line: %q", line)
	}
	risk, err := models.ParseRiskLevel(strings.ToLower(fields[1]))
	if err != nil {
		return e, err
	}
	command, err := unquote(fields[3])
	if err != nil {
		return e, fmt.Errorf("malformed audit command: %w", err)
	}

	e = Entry{
		Time:    ts,
		Result:  Result(fields[0]),
		Risk:    risk,
		Method:  fields[2],
		Command: command,
	}
	switch e.Result {
	case ResultAllowed, ResultDenied, ResultBlocked:
	default:
		return Entry{}, fmt.Errorf("unknown audit result %q", fields[0])
	}
	return e, nil
}

// unquote reverses FormatLine's %q, including control-character escapes, so
// a command containing a newline or tab round-trips exactly.
func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", errors.New("command not quoted")
	}
	return strconv.Unquote(s)
}

// Log is the audit trail at one file path.
type Log struct {
	Path string
}

func NewLog(path string) *Log {
	return &Log{Path: path}
}

// Append records one entry. The line is assembled fully before a single
// write syscall so concurrent writers never interleave within a line.
func (l *Log) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Method == "" {
		e.Method = "none"
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(e) + "\n"); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return f.Sync()
}

// Filter narrows Read output. Zero values match everything.
type Filter struct {
	Result Result
	// Tail keeps only the last N entries after filtering. 0 means all.
	Tail int
}

// Read returns entries oldest-first. Unparseable lines are skipped, not
// fatal: a torn final line must not hide the rest of the history.
func (l *Log) Read(filter Filter) ([]Entry, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			continue
		}
		if filter.Result != "" && e.Result != filter.Result {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	if filter.Tail > 0 && len(entries) > filter.Tail {
		entries = entries[len(entries)-filter.Tail:]
	}
	return entries, nil
}

// Follow streams new entries as they are appended, polling for growth until
// ctx is cancelled. Existing content is skipped; only lines written after
// the call are emitted. The offset only advances past complete lines so a
// line caught mid-write is picked up whole on the next tick.
func (l *Log) Follow(ctx context.Context, out chan<- Entry) error {
	defer close(out)

	var offset int64
	if info, err := os.Stat(l.Path); err == nil {
		offset = info.Size()
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(l.Path)
		if err != nil {
			continue
		}
		if info.Size() < offset {
			// Truncated (log clear): start over.
			offset = 0
		}
		if info.Size() == offset {
			continue
		}

		chunk, err := l.readFrom(offset, info.Size())
		if err != nil {
			continue
		}
		last := strings.LastIndexByte(chunk, '\n')
		if last < 0 {
			continue
		}
		for _, line := range strings.Split(chunk[:last], "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			e, err := ParseLine(line)
			if err != nil {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		offset += int64(last + 1)
	}
}

func (l *Log) readFrom(offset, end int64) (string, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}
	buf := make([]byte, end-offset)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return string(buf[:n]), nil
}

// Clear truncates the trail.
func (l *Log) Clear() error {
	err := os.Truncate(l.Path, 0)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
