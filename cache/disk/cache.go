// Package disk provides a disk-backed cache backend.
//
// Each archive is stored as two files named after the hex encoding of its
// fingerprint digest: the archive bytes (".zip") and a FlatBuffers record
// (".rec") holding the content digest, size and entry count. The record is
// written last, so a readable record implies complete content.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/zipbuild/cache"
	"github.com/meigma/zipbuild/internal/file"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700

	archiveExt = ".zip"
	recordExt  = ".rec"
)

// Cache implements cache.Backend using the local filesystem.
type Cache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64

	// pruneMu serializes pruning; reads and writes rely on atomic renames.
	pruneMu sync.Mutex
}

var _ cache.Backend = (*Cache)(nil)

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes bounds the total size of the cache directory. After each
// Put the least recently stored archives are evicted until the cache fits.
// Zero disables the bound.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New creates a disk-backed cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if c.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the archive stored for fingerprint. Entries whose bytes do
// not match their record are removed and reported as misses.
func (c *Cache) Get(fingerprint digest.Digest) (cache.Record, []byte, bool) {
	base, err := c.path(fingerprint)
	if err != nil {
		return cache.Record{}, nil, false
	}
	raw, err := os.ReadFile(base + recordExt) //nolint:gosec // path is derived from a digest, not user input
	if err != nil {
		return cache.Record{}, nil, false
	}
	rec, err := decodeRecord(raw)
	if err != nil || rec.Fingerprint != fingerprint {
		c.remove(base)
		return cache.Record{}, nil, false
	}
	content, err := os.ReadFile(base + archiveExt) //nolint:gosec // path is derived from a digest, not user input
	if err != nil {
		return cache.Record{}, nil, false
	}
	if cache.Verify(rec, content) != nil {
		c.remove(base)
		return cache.Record{}, nil, false
	}
	return rec, content, true
}

// Put stores content and its record.
func (c *Cache) Put(rec cache.Record, content []byte) error {
	if err := cache.Verify(rec, content); err != nil {
		return err
	}
	base, err := c.path(rec.Fingerprint)
	if err != nil {
		return err
	}
	if _, err := os.Stat(base + recordExt); err == nil {
		return nil
	}

	dir := filepath.Dir(base)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return err
	}
	if err := file.WriteAtomic(base+archiveExt, 0o600, file.WriteBytes(content)); err != nil {
		return fmt.Errorf("store archive: %w", err)
	}
	if err := file.WriteAtomic(base+recordExt, 0o600, file.WriteBytes(encodeRecord(rec))); err != nil {
		return fmt.Errorf("store record: %w", err)
	}

	if c.maxBytes > 0 {
		if _, err := c.Prune(c.maxBytes); err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
	}
	return nil
}

// Remove deletes the archive stored for fingerprint, if any.
func (c *Cache) Remove(fingerprint digest.Digest) error {
	base, err := c.path(fingerprint)
	if err != nil {
		return err
	}
	if err := os.Remove(base + recordExt); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Remove(base + archiveExt); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Size returns the total size of the cache directory in bytes.
func (c *Cache) Size() (int64, error) {
	return dirSize(c.dir)
}

// Prune evicts the least recently stored archives until the cache holds at
// most targetBytes. It returns the number of bytes freed.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()
	freed, _, err := pruneDir(c.dir, targetBytes)
	return freed, err
}

func (c *Cache) remove(base string) {
	_ = os.Remove(base + recordExt)
	_ = os.Remove(base + archiveExt)
}

// path returns the cache path of fingerprint without extension.
func (c *Cache) path(fingerprint digest.Digest) (string, error) {
	if err := fingerprint.Validate(); err != nil {
		return "", fmt.Errorf("invalid fingerprint: %w", err)
	}
	name := string(fingerprint.Algorithm()) + "-" + fingerprint.Encoded()
	hexHash := fingerprint.Encoded()
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, name), nil
	}
	prefixLen := min(c.shardPrefixLen, len(hexHash))
	return filepath.Join(c.dir, hexHash[:prefixLen], name), nil
}
