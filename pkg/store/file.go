package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	// FilePerm is the mode new blob files are created with.
	FilePerm = 0600
	// DirPerm is the mode the storage directory is created with.
	DirPerm = 0700
	blobExt = ".blob"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// fileBlobStore is a directory-backed blobStore. Each key is stored as a
// separate file named by the SHA-256 hash of the key, containing the raw
// encrypted blob with no wrapper or metadata.
type fileBlobStore struct {
	mu  sync.RWMutex
	dir string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewFileStorage creates a new file-backed Storage rooted at dir. The
// directory is created (with parents) if it does not already exist. The
// passphrase encrypts every entity at rest.
func NewFileStorage(passphrase, dir string) (*Storage, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return newStorage(passphrase, &fileBlobStore{dir: dir})
}

///////////////////////////////////////////////////////////////////////////////
// blobStore

func (f *fileBlobStore) get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	blob, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return blob, true, nil
}

func (f *fileBlobStore) set(_ context.Context, key string, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return os.WriteFile(f.path(key), blob, FilePerm)
}

func (f *fileBlobStore) delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil {
		if os.IsNotExist(err) {
			return mcp.ErrNotFound.Withf("no entry for key %q", key)
		}
		return err
	}
	return nil
}

func (f *fileBlobStore) path(key string) string {
	return hashPath(f.dir, key, blobExt)
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

// ensureDir creates dir (and its parents) if it does not already exist.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, DirPerm)
}

// hashPath returns the filesystem path for a given key, named by the
// hex-encoded SHA-256 hash of the key so arbitrary URLs and prefixes never
// collide with filesystem-unsafe characters.
func hashPath(dir, key, ext string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+ext)
}
