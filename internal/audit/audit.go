package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Kind enumerates the audit event classes named in the on-wire data model.
type Kind string

const (
	KindPolicyViolation   Kind = "policy_violation"
	KindRateLimited       Kind = "rate_limited"
	KindValidationFailure Kind = "validation_failure"
	KindSecurityAudit     Kind = "security_audit"
	KindAdminAction       Kind = "admin_action"
)

// zeroHash is the ParentHash of the first entry in a fresh log.
const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrDegraded is returned by Append once the write-retry budget has been
// exhausted; the logger remains usable and will retry lazily.
var ErrDegraded = errors.New("audit: log is degraded")

// Entry is one line of the audit log.
type Entry struct {
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message"`
	ParentHash string    `json:"parent_hash"`
	SelfHash   string    `json:"self_hash"`
}

func computeSelfHash(seq uint64, ts time.Time, kind Kind, message, parentHash string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(seq, 10)))
	h.Write([]byte("|"))
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte("|"))
	h.Write([]byte(kind))
	h.Write([]byte("|"))
	h.Write([]byte(message))
	h.Write([]byte("|"))
	h.Write([]byte(parentHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Logger appends hash-chained entries to a JSON-lines file under a
// single-writer discipline.
type Logger struct {
	path string

	mu       sync.Mutex
	file     *os.File
	seq      uint64
	lastHash string

	degraded atomic.Bool
	now      func() time.Time
	log      zerolog.Logger

	maxAttempts int
	baseBackoff time.Duration
}

// Option configures a Logger at construction time.
type Option func(*Logger)

// WithClock overrides the logger's time source; used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithRetryBudget overrides the append retry policy; used in tests to avoid
// real sleeps.
func WithRetryBudget(maxAttempts int, baseBackoff time.Duration) Option {
	return func(l *Logger) {
		l.maxAttempts = maxAttempts
		l.baseBackoff = baseBackoff
	}
}

// Open creates (or appends to) the audit log at path, validates any existing
// chain, and returns a ready Logger positioned to append the next entry.
// path's parent directory is created if missing.
func Open(path string, log zerolog.Logger, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create data dir: %w", err)
	}

	l := &Logger{
		path:        path,
		now:         time.Now,
		log:         log,
		maxAttempts: 5,
		baseBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}

	result, err := Verify(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("audit: verify existing log: %w", err)
	}
	if result.Entries > 0 && !result.OK {
		log.Warn().Int("broken_at", result.BrokenAt).Msg("audit: existing chain is broken, continuing from last entry")
	}
	l.seq = result.LastSeq
	l.lastHash = result.LastHash
	if l.lastHash == "" {
		l.lastHash = zeroHash
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open for append: %w", err)
	}
	l.file = f
	return l, nil
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// IsDegraded reports whether the logger is currently in degraded mode, i.e.
// the last Append exhausted its retry budget.
func (l *Logger) IsDegraded() bool { return l.degraded.Load() }

// Append writes one hash-chained entry. It blocks for the duration of the
// underlying retry policy on failure; callers invoke it from a dedicated
// blocking context, never from a non-blocking suspension point.
func (l *Logger) Append(kind Kind, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	wasDegraded := l.degraded.Load()
	seq := l.seq + 1
	ts := l.now()
	parent := l.lastHash
	self := computeSelfHash(seq, ts, kind, message, parent)
	entry := Entry{Seq: seq, Timestamp: ts, Kind: kind, Message: message, ParentHash: parent, SelfHash: self}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	line = append(line, '\n')

	writeErr := l.writeWithRetry(line)
	if writeErr != nil {
		l.degraded.Store(true)
		l.log.Error().Err(writeErr).Msg("audit: append failed, entering degraded mode")
		return fmt.Errorf("%w: %v", ErrDegraded, writeErr)
	}

	l.seq = seq
	l.lastHash = self

	if wasDegraded {
		l.degraded.Store(false)
		l.log.Info().Msg("audit: log recovered")
		// Best effort: record the recovery itself. A failure here does not
		// re-enter degraded mode synchronously; the next Append will retry.
		l.appendRecoveryLocked()
	}
	return nil
}

// appendRecoveryLocked must be called with mu held.
func (l *Logger) appendRecoveryLocked() {
	seq := l.seq + 1
	ts := l.now()
	parent := l.lastHash
	self := computeSelfHash(seq, ts, KindAdminAction, "audit log recovered", parent)
	entry := Entry{Seq: seq, Timestamp: ts, Kind: KindAdminAction, Message: "audit log recovered", ParentHash: parent, SelfHash: self}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')
	if err := l.writeWithRetry(line); err != nil {
		l.log.Warn().Err(err).Msg("audit: failed to record recovery entry")
		return
	}
	l.seq = seq
	l.lastHash = self
}

func (l *Logger) writeWithRetry(line []byte) error {
	var lastErr error
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(l.baseBackoff * time.Duration(1<<uint(attempt-1)))
		}
		if _, err := l.file.Write(line); err != nil {
			lastErr = err
			continue
		}
		if err := l.file.Sync(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// VerifyResult summarizes a chain walk.
type VerifyResult struct {
	Entries  int
	OK       bool
	BrokenAt int // -1 when OK
	LastSeq  uint64
	LastHash string
}

// Verify walks the JSON-lines file at path, recomputing each entry's
// SelfHash and checking the parent-hash chain. It returns the index (0
// based, counted over non-empty lines, including lines that fail to parse)
// of the first break, or a result with OK=true if the whole chain
// validates. A missing file is a valid, empty chain.
func Verify(path string) (VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return VerifyResult{OK: true, BrokenAt: -1, LastHash: zeroHash}, nil
		}
		return VerifyResult{}, err
	}
	defer f.Close()

	result := VerifyResult{OK: true, BrokenAt: -1, LastHash: zeroHash}
	expectedParent := zeroHash

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	idx := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			result.OK = false
			if result.BrokenAt < 0 {
				result.BrokenAt = idx
			}
			idx++
			continue
		}
		wantSelf := computeSelfHash(e.Seq, e.Timestamp, e.Kind, e.Message, e.ParentHash)
		if e.ParentHash != expectedParent || e.SelfHash != wantSelf {
			result.OK = false
			if result.BrokenAt < 0 {
				result.BrokenAt = idx
			}
		}
		expectedParent = e.SelfHash
		result.LastSeq = e.Seq
		result.LastHash = e.SelfHash
		result.Entries++
		idx++
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}
	return result, nil
}
