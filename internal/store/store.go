// Package store decides where model artifacts live on disk and whether
// they are complete.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"promptd/internal/catalog"
	"promptd/internal/common/fsutil"
)

// WorkDirState classifies a convertible model's working directory.
type WorkDirState int

const (
	WorkDirMissing WorkDirState = iota
	// WorkDirStale means the directory exists but its primary file is absent
	// or smaller than the source threshold.
	WorkDirStale
	WorkDirValid
)

func (s WorkDirState) String() string {
	switch s {
	case WorkDirMissing:
		return "missing"
	case WorkDirStale:
		return "stale"
	case WorkDirValid:
		return "valid"
	}
	return fmt.Sprintf("WorkDirState(%d)", int(s))
}

// Locations are the paths derived for one descriptor.
type Locations struct {
	Output       string
	Intermediate string
	WorkDir      string
}

// Store is the filesystem policy rooted at one models directory.
type Store struct {
	root string
}

// New returns a store rooted at root. A leading '~' is expanded and the
// result made absolute.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("models root is empty")
	}
	p, err := fsutil.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute models root.
func (s *Store) Root() string { return s.root }

// EnsureRoot creates the models root if needed.
func (s *Store) EnsureRoot() error {
	return os.MkdirAll(s.root, 0o755)
}

// Locate derives all paths for d.
func (s *Store) Locate(d catalog.Descriptor) Locations {
	ext := filepath.Ext(d.Output())
	if ext == "" {
		ext = ".gguf"
	}
	return Locations{
		Output:       filepath.Join(s.root, d.Output()),
		Intermediate: filepath.Join(s.root, d.ID+".f16"+ext),
		WorkDir:      filepath.Join(s.root, d.ID),
	}
}

// IsComplete reports whether the final artifact exists and reaches
// MinimumBytes. A zero-byte file is never complete.
func (s *Store) IsComplete(d catalog.Descriptor) bool {
	size := fsutil.FileSize(s.Locate(d).Output)
	if size <= 0 {
		return false
	}
	return size >= d.MinimumBytes
}

// WorkDirState inspects the working directory of a convertible descriptor.
func (s *Store) WorkDirState(d catalog.Descriptor) WorkDirState {
	dir := s.Locate(d).WorkDir
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return WorkDirMissing
	}
	size := fsutil.FileSize(filepath.Join(dir, d.PrimaryFile))
	if size <= 0 || size < d.SourceMinimumBytes {
		return WorkDirStale
	}
	return WorkDirValid
}

// ResetWorkDir leaves a valid working directory alone, creates a missing one
// and wipes and recreates a stale one so a corrupt partial set is never
// resumed. It returns the state observed before the reset.
func (s *Store) ResetWorkDir(d catalog.Descriptor) (WorkDirState, error) {
	dir := s.Locate(d).WorkDir
	st := s.WorkDirState(d)
	switch st {
	case WorkDirValid:
		return st, nil
	case WorkDirStale:
		log.Debug().Str("model", d.ID).Str("dir", dir).Msg("store: wiping stale working directory")
		if err := fsutil.RemoveIfExists(dir); err != nil {
			return st, fmt.Errorf("wipe %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return st, fmt.Errorf("create %s: %w", dir, err)
	}
	return st, nil
}

// RemoveIncompleteOutput deletes the final artifact only when it fails
// IsComplete.
func (s *Store) RemoveIncompleteOutput(d catalog.Descriptor) error {
	if s.IsComplete(d) {
		return nil
	}
	return fsutil.RemoveIfExists(s.Locate(d).Output)
}

// Purge removes the output, intermediate and working directory. Paths that
// never existed are ignored.
func (s *Store) Purge(d catalog.Descriptor) error {
	loc := s.Locate(d)
	var firstErr error
	for _, p := range []string{loc.Output, loc.Intermediate, loc.WorkDir} {
		if err := fsutil.RemoveIfExists(p); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return firstErr
}

// Unlocker releases a lock taken with Lock.
type Unlocker interface {
	Unlock() error
}

// Lock takes the cross-process lock guarding fetch and conversion of d.
// It blocks until the lock is acquired or ctx is done.
func (s *Store) Lock(ctx context.Context, d catalog.Descriptor) (Unlocker, error) {
	if err := s.EnsureRoot(); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(s.root, "."+d.ID+".lock"))
	ok, err := fl.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", d.ID, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: not acquired", d.ID)
	}
	return fl, nil
}
