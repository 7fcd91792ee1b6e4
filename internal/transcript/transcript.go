// Package transcript records every RPC exchange of a controller session.
//
// Each exchange is appended to a plain-text log as one request line and one
// response line, and indexed as a JSON entry in a key-value store so tests
// can query what was sent. Entries live under a per-session prefix, so one
// store (for example a Badger directory) can hold the index of many sessions.
package transcript

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/wallet-controller/internal/log"
	"github.com/Klingon-tech/wallet-controller/internal/rpcclient"
	"github.com/Klingon-tech/wallet-controller/internal/storage"
	"github.com/Klingon-tech/wallet-controller/pkg/crypto"
)

// FilePrefix starts the name of every transcript file.
const FilePrefix = "wallet_commands_responses_"

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("transcript closed")

var (
	prefixEntry  = []byte("tx/")
	prefixMethod = []byte("m/")
)

// Entry is one indexed exchange.
type Entry struct {
	Seq     uint64          `json:"seq"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Status  int             `json:"status,omitempty"`
	Body    string          `json:"body"`
	Digest  string          `json:"digest,omitempty"`
	Error   string          `json:"error,omitempty"`
	Time    time.Time       `json:"time"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Transcript is the append-only record of one session.
type Transcript struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	db      *storage.PrefixDB
	ownedDB storage.DB // closed with the transcript
	seq     uint64
	closed  bool
	log     zerolog.Logger
}

// Open creates the transcript file for sessionID in dir. When db is nil the
// index is kept in memory for the lifetime of the transcript.
func Open(dir, sessionID string, db storage.DB) (*Transcript, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	path := filepath.Join(dir, FilePrefix+sessionID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}

	t := &Transcript{
		path: path,
		file: f,
		log:  klog.WithSession("transcript", sessionID),
	}
	if db == nil {
		mem := storage.NewMemory()
		db = mem
		t.ownedDB = mem
	}
	t.db = storage.NewPrefixDB(db, SessionPrefix(sessionID))

	// Resume numbering if the index already holds this session.
	last, err := lastSeq(t.db)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.seq = last

	t.log.Debug().Str("path", path).Msg("Transcript opened")
	return t, nil
}

// SessionPrefix is the key prefix of a session's index.
func SessionPrefix(sessionID string) []byte {
	return []byte("session/" + sessionID + "/")
}

// Path returns the transcript file path.
func (t *Transcript) Path() string { return t.path }

// Record appends one exchange to the file and the index.
func (t *Transcript) Record(ex rpcclient.Exchange) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	t.seq++
	e := Entry{
		Seq:     t.seq,
		ID:      ex.ID,
		Method:  ex.Method,
		Params:  ex.Params,
		Status:  ex.Status,
		Body:    string(ex.Body),
		Time:    ex.Started.UTC(),
		Elapsed: ex.Elapsed,
	}
	if ex.Body != nil {
		e.Digest = crypto.DigestHex(ex.Body)
	}
	if ex.Err != nil {
		e.Error = ex.Err.Error()
	}

	if err := t.writeLines(e); err != nil {
		return err
	}
	return t.index(e)
}

func (t *Transcript) writeLines(e Entry) error {
	ts := e.Time.Format(time.RFC3339Nano)
	_, err := fmt.Fprintf(t.file, "%s #%d -> %s %s\n", ts, e.ID, e.Method, e.Params)
	if err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	var resp string
	switch {
	case e.Body != "" && e.Error != "":
		resp = fmt.Sprintf("%d %s (%s)", e.Status, e.Body, e.Error)
	case e.Body != "":
		resp = fmt.Sprintf("%d %s", e.Status, e.Body)
	default:
		resp = "no response: " + e.Error
	}
	if _, err := fmt.Fprintf(t.file, "%s #%d <- %s\n", ts, e.ID, resp); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func (t *Transcript) index(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode transcript entry: %w", err)
	}
	n, err := t.countLocked(e.Method)
	if err != nil {
		return err
	}
	b := t.db.NewBatch()
	if err := b.Put(entryKey(e.Seq), data); err != nil {
		return fmt.Errorf("index transcript entry: %w", err)
	}
	if err := b.Put(methodKey(e.Method), encodeUint(n+1)); err != nil {
		return fmt.Errorf("index transcript entry: %w", err)
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("index transcript entry: %w", err)
	}
	return nil
}

// Entries returns all recorded entries in order.
func (t *Transcript) Entries() ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	return readEntries(t.db)
}

// Count returns how many calls of method were recorded.
func (t *Transcript) Count(method string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrClosed
	}
	return t.countLocked(method)
}

// Len returns the number of recorded entries.
func (t *Transcript) Len() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

func (t *Transcript) countLocked(method string) (uint64, error) {
	v, err := t.db.Get(methodKey(method))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read method count: %w", err)
	}
	return decodeUint(v), nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if err := t.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync transcript: %w", err))
	}
	if err := t.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transcript: %w", err))
	}
	if t.ownedDB != nil {
		if err := t.ownedDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.log.Debug().Uint64("entries", t.seq).Msg("Transcript closed")
	return errors.Join(errs...)
}

// ReadSession loads the entries a past session left in db.
func ReadSession(db storage.DB, sessionID string) ([]Entry, error) {
	return readEntries(storage.NewPrefixDB(db, SessionPrefix(sessionID)))
}

// Sessions lists the session ids with an index in db.
func Sessions(db storage.DB) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	root := []byte("session/")
	err := db.ForEach(root, func(key, _ []byte) error {
		rest := key[len(root):]
		for i, c := range rest {
			if c == '/' {
				id := string(rest[:i])
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
				break
			}
		}
		return nil
	})
	return ids, err
}

func readEntries(db storage.DB) ([]Entry, error) {
	var out []Entry
	err := db.ForEach(prefixEntry, func(_, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode transcript entry: %w", err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func lastSeq(db storage.DB) (uint64, error) {
	var last uint64
	err := db.ForEach(prefixEntry, func(key, _ []byte) error {
		if s := decodeUint(key[len(prefixEntry):]); s > last {
			last = s
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan transcript index: %w", err)
	}
	return last, nil
}

func entryKey(seq uint64) []byte {
	return append(append([]byte(nil), prefixEntry...), encodeUint(seq)...)
}

func methodKey(method string) []byte {
	return append(append([]byte(nil), prefixMethod...), method...)
}

func encodeUint(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

func decodeUint(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
