package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JustinTDCT/MediaForge/internal/models"
)

// Store is the content-addressed file store. Files live under
// <root>/cache/<kind>/<hash[0:2]>/<hash>; the first two hex chars shard the
// directory so no single dir grows unbounded.
type Store struct {
	root string
}

func NewStore(dataDir string) *Store {
	return &Store{root: filepath.Join(dataDir, "cache")}
}

// HashBytes returns the sha256 content hash as lowercase hex.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile hashes a file's contents without loading it whole.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PathFor computes where a hash lives (whether or not it exists yet).
func (s *Store) PathFor(kind models.MediaKind, hash string) string {
	return filepath.Join(s.root, string(kind), hash[:2], hash)
}

// Put stores the bytes under their content hash. Idempotent: when the hash
// already exists on disk the existing path is returned without rewriting.
// The write goes to a temp file first and is renamed into place so readers
// never observe partial content.
func (s *Store) Put(kind models.MediaKind, data []byte) (hash, path string, err error) {
	hash = HashBytes(data)
	path = s.PathFor(kind, hash)

	if _, statErr := os.Stat(path); statErr == nil {
		return hash, path, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+hash+".tmp*")
	if err != nil {
		return "", "", fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", "", fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", "", fmt.Errorf("rename into cache: %w", err)
	}
	return hash, path, nil
}

// Get returns the on-disk path for a hash, or empty string when absent.
func (s *Store) Get(kind models.MediaKind, hash string) string {
	if len(hash) < 2 {
		return ""
	}
	path := s.PathFor(kind, hash)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Delete removes the file for a hash. Callers must ensure no live
// library-file reference remains.
func (s *Store) Delete(kind models.MediaKind, hash string) error {
	if len(hash) < 2 {
		return fmt.Errorf("invalid hash %q", hash)
	}
	err := os.Remove(s.PathFor(kind, hash))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Walk visits every regular file in the store, calling fn with the absolute
// path. Temp files left by interrupted writes are skipped.
func (s *Store) Walk(fn func(path string, size int64) error) error {
	return filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.Contains(filepath.Base(path), ".tmp") {
			return nil
		}
		return fn(path, info.Size())
	})
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}
