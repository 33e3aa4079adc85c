package rrcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/rerere/core/fingerprint"
	"github.com/adalundhe/rerere/core/storage"
)

const (
	preimageName  = "preimage"
	postimageName = "postimage"

	filePerm = 0o644

	// DefaultPreimageCacheSize bounds the in-process preimage cache.
	DefaultPreimageCacheSize = 256
)

// =============================================================================
// Configuration
// =============================================================================

// StoreConfig configures a Store.
type StoreConfig struct {
	// Filesystem is rooted at the cache directory (required).
	Filesystem billy.Filesystem

	// PreimageCacheSize bounds the preimage cache (default: 256, negative disables).
	PreimageCacheSize int

	// Now is the clock used by Touch (default: time.Now).
	Now func() time.Time

	// Logger (default: slog.Default()).
	Logger *slog.Logger
}

// =============================================================================
// Store
// =============================================================================

// Store is the directory-backed resolution store. It holds no lock: record
// consistency follows from rename atomicity, so any number of processes may
// share one cache directory.
type Store struct {
	fs        billy.Filesystem
	preimages *lru.Cache[string, []byte]
	now       func() time.Time
	logger    *slog.Logger
}

// NewStore creates a Store over cfg.Filesystem.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Filesystem == nil {
		return nil, errors.New("rrcache: store requires a filesystem")
	}
	if cfg.PreimageCacheSize == 0 {
		cfg.PreimageCacheSize = DefaultPreimageCacheSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		fs:     cfg.Filesystem,
		now:    cfg.Now,
		logger: cfg.Logger,
	}

	if cfg.PreimageCacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.PreimageCacheSize)
		if err != nil {
			return nil, fmt.Errorf("rrcache: create preimage cache: %w", err)
		}
		s.preimages = cache
	}

	return s, nil
}

func recordDir(id fingerprint.Identity) string {
	return path.Join(id.Hash[:2], id.Hash[2:])
}

func fileName(base string, occurrence int) string {
	if occurrence == 0 {
		return base
	}
	return base + "." + strconv.Itoa(occurrence)
}

func preimagePath(id fingerprint.Identity) string {
	return path.Join(recordDir(id), fileName(preimageName, id.Occurrence))
}

func postimagePath(id fingerprint.Identity) string {
	return path.Join(recordDir(id), fileName(postimageName, id.Occurrence))
}

func checkID(op string, id fingerprint.Identity) error {
	if !fingerprint.ValidHash(id.Hash) || id.Occurrence < 0 {
		return &Error{Op: op, ID: id, Err: fingerprint.ErrInvalidIdentity}
	}
	return nil
}

func (s *Store) stat(name string) (os.FileInfo, bool, error) {
	info, err := s.fs.Stat(name)
	if err == nil {
		return info, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, err
}

// Has reports whether a record exists for id.
func (s *Store) Has(id fingerprint.Identity) (bool, error) {
	if err := checkID("has", id); err != nil {
		return false, err
	}
	_, ok, err := s.stat(preimagePath(id))
	if err != nil {
		return false, &Error{Op: "has", ID: id, Path: preimagePath(id), Err: err}
	}
	return ok, nil
}

// Get returns the record for id. The boolean is false when no record exists.
func (s *Store) Get(id fingerprint.Identity) (Record, bool, error) {
	if err := checkID("get", id); err != nil {
		return Record{}, false, err
	}

	preInfo, ok, err := s.stat(preimagePath(id))
	if err != nil {
		return Record{}, false, &Error{Op: "get", ID: id, Path: preimagePath(id), Err: err}
	}
	if !ok {
		return Record{}, false, nil
	}

	pre, err := s.readPreimage(id)
	if err != nil {
		return Record{}, false, err
	}

	rec := Record{
		ID:       id,
		Preimage: pre,
		Status:   StatusPending,
		LastUsed: preInfo.ModTime(),
	}

	postInfo, ok, err := s.stat(postimagePath(id))
	if err != nil {
		return Record{}, false, &Error{Op: "get", ID: id, Path: postimagePath(id), Err: err}
	}
	if !ok {
		return rec, true, nil
	}

	post, err := util.ReadFile(s.fs, postimagePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Deleted between stat and read.
			return rec, true, nil
		}
		return Record{}, false, &Error{Op: "get", ID: id, Path: postimagePath(id), Err: err}
	}

	rec.Postimage = post
	rec.Status = StatusResolved
	rec.LastUsed = postInfo.ModTime()
	return rec, true, nil
}

func (s *Store) readPreimage(id fingerprint.Identity) ([]byte, error) {
	key := id.String()
	if s.preimages != nil {
		if pre, ok := s.preimages.Get(key); ok {
			return bytes.Clone(pre), nil
		}
	}

	pre, err := util.ReadFile(s.fs, preimagePath(id))
	if err != nil {
		return nil, &Error{Op: "get", ID: id, Path: preimagePath(id), Err: err}
	}

	if s.preimages != nil {
		s.preimages.Add(key, bytes.Clone(pre))
	}
	return pre, nil
}

// PutPreimage creates a Pending record for id. When a record already exists
// it does nothing and returns false; a stored preimage is never replaced.
func (s *Store) PutPreimage(id fingerprint.Identity, text []byte) (bool, error) {
	if err := checkID("put-preimage", id); err != nil {
		return false, err
	}

	name := preimagePath(id)
	_, exists, err := s.stat(name)
	if err != nil {
		return false, &Error{Op: "put-preimage", ID: id, Path: name, Err: err}
	}
	if exists {
		return false, nil
	}

	// Racing first writers both rename into place; they write the same
	// normalized text for the same identity.
	if err := storage.WriteFileAtomic(s.fs, name, text, filePerm); err != nil {
		return false, &Error{Op: "put-preimage", ID: id, Path: name, Err: err}
	}

	if s.preimages != nil {
		s.preimages.Add(id.String(), bytes.Clone(text))
	}

	s.logger.Debug("recorded preimage", slog.String("id", id.String()))
	return true, nil
}

// PutPostimage records text as the resolution of id, replacing any previous
// resolution. The record must exist.
func (s *Store) PutPostimage(id fingerprint.Identity, text []byte) error {
	if err := checkID("put-postimage", id); err != nil {
		return err
	}

	_, exists, err := s.stat(preimagePath(id))
	if err != nil {
		return &Error{Op: "put-postimage", ID: id, Path: preimagePath(id), Err: err}
	}
	if !exists {
		return &Error{Op: "put-postimage", ID: id, Path: preimagePath(id), Err: ErrNotFound}
	}

	name := postimagePath(id)
	if err := storage.WriteFileAtomic(s.fs, name, text, filePerm); err != nil {
		return &Error{Op: "put-postimage", ID: id, Path: name, Err: err}
	}

	s.logger.Debug("recorded postimage", slog.String("id", id.String()))
	return nil
}

// Touch refreshes the last-used time of id. The postimage carries the time of
// a resolved record and the preimage the time of a pending one.
func (s *Store) Touch(id fingerprint.Identity) error {
	if err := checkID("touch", id); err != nil {
		return err
	}

	name := postimagePath(id)
	_, ok, err := s.stat(name)
	if err != nil {
		return &Error{Op: "touch", ID: id, Path: name, Err: err}
	}
	if !ok {
		name = preimagePath(id)
		if _, ok, err = s.stat(name); err != nil {
			return &Error{Op: "touch", ID: id, Path: name, Err: err}
		}
		if !ok {
			return &Error{Op: "touch", ID: id, Path: name, Err: ErrNotFound}
		}
	}

	if err := s.touchFile(name); err != nil {
		return &Error{Op: "touch", ID: id, Path: name, Err: err}
	}
	return nil
}

func (s *Store) touchFile(name string) error {
	now := s.now()
	if ch, ok := s.fs.(billy.Change); ok {
		if err := ch.Chtimes(name, now, now); err == nil {
			return nil
		}
	}

	// Rewriting through a rename also yields a fresh mtime.
	data, err := util.ReadFile(s.fs, name)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(s.fs, name, data, filePerm)
}

// Delete removes the record for id. Deleting a missing record succeeds.
func (s *Store) Delete(id fingerprint.Identity) error {
	if err := checkID("delete", id); err != nil {
		return err
	}

	// Postimage first, so a concurrent reader never sees a resolution
	// without its preimage.
	for _, name := range []string{postimagePath(id), preimagePath(id)} {
		if err := storage.RemoveIfExists(s.fs, name); err != nil {
			return &Error{Op: "delete", ID: id, Path: name, Err: err}
		}
	}

	if s.preimages != nil {
		s.preimages.Remove(id.String())
	}

	if err := storage.PruneEmptyDirs(s.fs, recordDir(id)); err != nil {
		s.logger.Debug("could not prune record directory",
			slog.String("id", id.String()),
			slog.String("error", err.Error()))
	}
	return nil
}

// =============================================================================
// Listing
// =============================================================================

// All lazily walks every record. A record that cannot be read is yielded as
// an error and the walk continues. The walk stops when ctx is cancelled, after
// yielding ctx's error.
func (s *Store) All(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for id, err := range s.IDs(ctx) {
			if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}

			rec, ok, err := s.Get(id)
			if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			if !ok {
				// Removed by another process mid-walk.
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// IDs lazily walks every stored identity without reading record content.
func (s *Store) IDs(ctx context.Context) iter.Seq2[fingerprint.Identity, error] {
	return func(yield func(fingerprint.Identity, error) bool) {
		fanout, err := s.readDir(".")
		if err != nil {
			yield(fingerprint.Identity{}, &Error{Op: "list", Path: s.fs.Root(), Err: err})
			return
		}

		for _, fan := range fanout {
			if !fan.IsDir() || len(fan.Name()) != 2 {
				continue
			}

			records, err := s.readDir(fan.Name())
			if err != nil {
				if !yield(fingerprint.Identity{}, &Error{Op: "list", Path: fan.Name(), Err: err}) {
					return
				}
				continue
			}

			for _, rec := range records {
				if err := ctx.Err(); err != nil {
					yield(fingerprint.Identity{}, err)
					return
				}
				if !rec.IsDir() {
					continue
				}
				hash := fan.Name() + rec.Name()
				if !fingerprint.ValidHash(hash) {
					continue
				}
				if !s.yieldOccurrences(hash, path.Join(fan.Name(), rec.Name()), yield) {
					return
				}
			}
		}
	}
}

func (s *Store) yieldOccurrences(hash, dir string, yield func(fingerprint.Identity, error) bool) bool {
	files, err := s.readDir(dir)
	if err != nil {
		return yield(fingerprint.Identity{}, &Error{Op: "list", ID: fingerprint.Identity{Hash: hash}, Path: dir, Err: err})
	}

	for _, f := range files {
		occurrence, ok := parsePreimageName(f.Name())
		if !ok || f.IsDir() {
			continue
		}
		if !yield(fingerprint.Identity{Hash: hash, Occurrence: occurrence}, nil) {
			return false
		}
	}
	return true
}

func (s *Store) readDir(dir string) ([]os.FileInfo, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

// parsePreimageName maps "preimage" and "preimage.N" to an occurrence.
// Temporary files and postimages are rejected.
func parsePreimageName(name string) (int, bool) {
	if name == preimageName {
		return 0, true
	}
	suffix, ok := strings.CutPrefix(name, preimageName+".")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
