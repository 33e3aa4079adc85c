package rerere

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/rerere/core/fingerprint"
	"github.com/adalundhe/rerere/core/storage"
)

const (
	journalVersion = 1

	lockRetryDelay = 50 * time.Millisecond
)

// ErrJournalVersion is returned for a journal written by an incompatible version.
var ErrJournalVersion = errors.New("unsupported journal version")

// JournalConfig configures a Journal.
type JournalConfig struct {
	// Path is the journal file, normally <gitdir>/rerere/journal.yaml (required).
	Path string

	// LockPath is the advisory lock file (default: Path + ".lock").
	LockPath string
}

// Journal persists the merge session. Updates hold an advisory file lock
// for their read-modify-write cycle and replace the file atomically.
type Journal struct {
	path string
	lock *flock.Flock
}

// NewJournal creates a Journal.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	if cfg.Path == "" {
		return nil, errors.New("rerere: journal requires a path")
	}
	if cfg.LockPath == "" {
		cfg.LockPath = cfg.Path + ".lock"
	}
	return &Journal{
		path: cfg.Path,
		lock: flock.New(cfg.LockPath),
	}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

type journalFile struct {
	Version int            `yaml:"version"`
	Session string         `yaml:"session"`
	Paths   []journalEntry `yaml:"paths"`
}

// journalEntry holds the snapshot base64-encoded: conflicted files carry
// arbitrary bytes and whitespace that YAML scalars do not round-trip.
type journalEntry struct {
	Path     string        `yaml:"path"`
	Snapshot string        `yaml:"snapshot"`
	Hunks    []journalHunk `yaml:"hunks"`
}

type journalHunk struct {
	ID    string `yaml:"id"`
	State string `yaml:"state"`
}

// Read loads the current session without locking. A missing journal yields
// an empty session.
func (j *Journal) Read() (*MergeSession, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return newMergeSession(uuid.NewString()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return decodeJournal(data)
}

// Update loads the session under the journal lock, passes it to fn and
// writes it back unless fn fails. An empty session removes the journal.
func (j *Journal) Update(ctx context.Context, fn func(*MergeSession) error) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	locked, err := j.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock journal: %s is held by another process", j.lock.Path())
	}
	defer j.lock.Unlock()

	session, err := j.Read()
	if err != nil {
		return err
	}

	if err := fn(session); err != nil {
		return err
	}

	return j.write(session)
}

func (j *Journal) write(session *MergeSession) error {
	fs := osfs.New(filepath.Dir(j.path))
	name := filepath.Base(j.path)

	if session.Len() == 0 {
		if err := storage.RemoveIfExists(fs, name); err != nil {
			return fmt.Errorf("remove journal: %w", err)
		}
		return nil
	}

	data, err := encodeJournal(session)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(fs, name, data, 0o644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Exists reports whether a journal file is present.
func (j *Journal) Exists() (bool, error) {
	fs := osfs.New(filepath.Dir(j.path))
	_, err := fs.Stat(filepath.Base(j.path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func encodeJournal(session *MergeSession) ([]byte, error) {
	file := journalFile{
		Version: journalVersion,
		Session: session.ID,
		Paths:   make([]journalEntry, 0, session.Len()),
	}

	for _, path := range session.order {
		entry := session.entries[path]
		je := journalEntry{
			Path:     entry.Path,
			Snapshot: base64.StdEncoding.EncodeToString(entry.Snapshot),
			Hunks:    make([]journalHunk, 0, len(entry.Hunks)),
		}
		for _, h := range entry.Hunks {
			je.Hunks = append(je.Hunks, journalHunk{ID: h.ID.String(), State: h.State.String()})
		}
		file.Paths = append(file.Paths, je)
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return nil, fmt.Errorf("encode journal: %w", err)
	}
	return data, nil
}

func decodeJournal(data []byte) (*MergeSession, error) {
	var file journalFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	if file.Version != journalVersion {
		return nil, fmt.Errorf("%w: %d", ErrJournalVersion, file.Version)
	}

	if file.Session == "" {
		file.Session = uuid.NewString()
	}
	session := newMergeSession(file.Session)

	for _, je := range file.Paths {
		snapshot, err := base64.StdEncoding.DecodeString(je.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("decode journal: %s: snapshot: %w", je.Path, err)
		}
		entry := &PathEntry{
			Path:     je.Path,
			Snapshot: snapshot,
			Hunks:    make([]HunkEntry, 0, len(je.Hunks)),
		}
		for _, jh := range je.Hunks {
			id, err := fingerprint.ParseIdentity(jh.ID)
			if err != nil {
				return nil, fmt.Errorf("decode journal: %s: %w", je.Path, err)
			}
			state, err := parseHunkState(jh.State)
			if err != nil {
				return nil, fmt.Errorf("decode journal: %s: %w", je.Path, err)
			}
			entry.Hunks = append(entry.Hunks, HunkEntry{ID: id, State: state})
		}
		session.Put(entry)
	}

	return session, nil
}
