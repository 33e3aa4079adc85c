package storage

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
)

// TempPrefix marks in-progress writes. Readers skip names with this prefix.
const TempPrefix = ".tmp-"

type syncer interface {
	Sync() error
}

// WriteFileAtomic writes data to name through a temporary file in the same
// directory, synced when the file supports it, then renamed into place. A
// reader sees either the previous content or the new content, never a torn
// write. perm applies to the new file (before umask).
func WriteFileAtomic(fs billy.Filesystem, name string, data []byte, perm os.FileMode) error {
	dir := path.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmpName := path.Join(dir, TempPrefix+uuid.NewString())
	tmp, err := fs.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}

	if err := writeAndClose(tmp, data); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", name, err)
	}
	return nil
}

func writeAndClose(f billy.File, data []byte) error {
	_, werr := f.Write(data)
	var serr error
	if werr == nil {
		if s, ok := f.(syncer); ok {
			serr = s.Sync()
		}
	}
	cerr := f.Close()
	return errors.Join(werr, serr, cerr)
}

// RemoveIfExists removes name, treating a missing file as success.
func RemoveIfExists(fs billy.Filesystem, name string) error {
	err := fs.Remove(name)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// PruneEmptyDirs removes dir and its parents up to (not including) the
// filesystem root while they are empty.
func PruneEmptyDirs(fs billy.Filesystem, dir string) error {
	for dir != "." && dir != "/" && dir != "" {
		entries, err := fs.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				dir = path.Dir(dir)
				continue
			}
			return err
		}
		if len(entries) > 0 {
			return nil
		}
		if err := RemoveIfExists(fs, dir); err != nil {
			return err
		}
		dir = path.Dir(dir)
	}
	return nil
}
