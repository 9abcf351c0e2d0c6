// Package storage provides durable, seekable file-backed blobs for
// uploaded tracking files and their derived documents. New blobs live
// under a temporary path until committed, so parsers that need a
// filesystem path can read them before and after the owning record is
// saved.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type Store struct {
	dir string
}

// Blob is a handle to stored bytes plus the extension tag the bytes
// were saved under.
type Blob struct {
	id        string
	ext       string
	tempPath  string
	finalPath string
	committed bool
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes data under a fresh temporary path and returns the handle.
// The blob becomes durable once Commit is called.
func (s *Store) Save(data []byte, ext string) (*Blob, error) {
	id := uuid.NewString()
	blob := &Blob{
		id:        id,
		ext:       ext,
		tempPath:  filepath.Join(s.dir, "tmp", id+"."+ext),
		finalPath: filepath.Join(s.dir, id+"."+ext),
	}
	if err := os.WriteFile(blob.tempPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write blob %s: %w", id, err)
	}
	return blob, nil
}

func (b *Blob) ID() string {
	return b.id
}

func (b *Blob) Ext() string {
	return b.ext
}

// Path returns the location of the blob's bytes: the temporary path
// before Commit, the durable one afterwards.
func (b *Blob) Path() string {
	if b.committed {
		return b.finalPath
	}
	return b.tempPath
}

func (b *Blob) Open() (io.ReadCloser, error) {
	return os.Open(b.Path())
}

func (b *Blob) ReadAll() ([]byte, error) {
	return os.ReadFile(b.Path())
}

// Commit moves the blob to its durable path.
func (b *Blob) Commit() error {
	if b.committed {
		return nil
	}
	if err := os.Rename(b.tempPath, b.finalPath); err != nil {
		return fmt.Errorf("failed to commit blob %s: %w", b.id, err)
	}
	b.committed = true
	return nil
}

// Discard removes an uncommitted blob's bytes. Committed blobs are
// left alone.
func (b *Blob) Discard() error {
	if b.committed {
		return nil
	}
	if err := os.Remove(b.tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard blob %s: %w", b.id, err)
	}
	return nil
}
