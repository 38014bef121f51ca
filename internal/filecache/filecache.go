// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

// Package filecache provides an expiring key/value cache that stores each
// entry in its own file on disk.
//
// Entries are written to a temporary directory and renamed into place, so
// concurrent readers never observe a partially written file.  Two writers
// racing on the same key is harmless: the last rename wins.
package filecache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/peterbourgon/diskv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"willnorris.com/go/imagr/internal/envelope"
)

// DefaultExtension is the file suffix used when Options.Extension is empty.
const DefaultExtension = ".cache"

// maxSuffixLen bounds the readable part of a file name.
const maxSuffixLen = 200

// StorageError reports a failure to create or write the cache directory.
type StorageError struct {
	Op   string // operation being performed, such as "mkdir" or "write"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Options configures a Cache.
type Options struct {
	// BaseDir is the directory relative cache paths are resolved against.
	// If empty, the process working directory is used.
	BaseDir string

	// TempDir is where entries are staged before being renamed into
	// place.  It must be on the same filesystem as the cache.  If empty,
	// a ".tmp" directory inside the cache is used.
	TempDir string

	// Extension is the suffix of every cache file.  Flush only removes
	// files with this suffix.
	Extension string

	// TTL is the lifetime used by Set.  Zero means entries never expire.
	TTL time.Duration

	Logger *zap.Logger

	// Now returns the current time.  Defaults to time.Now.
	Now func() time.Time
}

// Cache is an expiring file-backed cache.
type Cache struct {
	d      *diskv.Diskv
	path   string
	ext    string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Cache rooted at path, creating the directory if needed.
func New(path string, opt Options) (*Cache, error) {
	if !filepath.IsAbs(path) {
		base := opt.BaseDir
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, &StorageError{"resolve", path, err}
			}
			base = wd
		}
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	if fi, err := os.Stat(path); err == nil {
		if !fi.IsDir() {
			return nil, &StorageError{"mkdir", path, fmt.Errorf("%w: not a directory", fs.ErrExist)}
		}
	} else if err := os.MkdirAll(path, 0755); err != nil {
		return nil, &StorageError{"mkdir", path, err}
	}

	tmp := opt.TempDir
	if tmp == "" {
		tmp = filepath.Join(path, ".tmp")
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, &StorageError{"mkdir", tmp, err}
	}

	c := &Cache{
		d: diskv.New(diskv.Options{
			BasePath: path,
			TempDir:  tmp,
			// all entries live directly in the cache root
			Transform: func(string) []string { return nil },
		}),
		path:   path,
		ext:    opt.Extension,
		ttl:    opt.TTL,
		logger: opt.Logger,
		now:    opt.Now,
	}
	if c.ext == "" {
		c.ext = DefaultExtension
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Path returns the absolute directory backing the cache.
func (c *Cache) Path() string { return c.path }

// UniqueID derives the file name stem for id: the hex md5 of id followed
// by a lowercased, alphanumeric-only copy of id for readability.
func UniqueID(id string) string {
	h := md5.New()
	_, _ = io.WriteString(h, id)

	suffix := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return -1
	}, id)
	if len(suffix) > maxSuffixLen {
		suffix = suffix[:maxSuffixLen]
	}

	return hex.EncodeToString(h.Sum(nil)) + "-" + suffix
}

func (c *Cache) key(id string) string {
	return UniqueID(id) + c.ext
}

// Has reports whether an unexpired entry exists for id.  Expired entries
// are removed.
func (c *Cache) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Get returns the value stored for id.  Missing, unreadable, and expired
// entries are all reported as a miss; expired and corrupt files are
// removed.
func (c *Cache) Get(id string) ([]byte, bool) {
	key := c.key(id)
	b, err := c.d.Read(key)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("error reading cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	e, err := envelope.Decode(b)
	if err != nil {
		c.logger.Warn("error decoding cache entry", zap.String("key", key), zap.Error(err))
		c.erase(key)
		return nil, false
	}

	if e.Expired(c.now()) {
		c.logger.Debug("cache entry expired", zap.String("key", key))
		c.erase(key)
		return nil, false
	}

	return e.Value, true
}

// Put stores value for id.  A ttl of zero stores an entry that never
// expires.
func (c *Cache) Put(id string, value []byte, ttl time.Duration) error {
	key := c.key(id)
	b, err := envelope.Encode(envelope.New(value, ttl, c.now()))
	if err != nil {
		return &StorageError{"encode", key, err}
	}
	if err := c.d.Write(key, b); err != nil {
		return &StorageError{"write", filepath.Join(c.path, key), err}
	}
	return nil
}

// Set stores value for id using the cache's default TTL.  Failures are
// logged rather than returned.
func (c *Cache) Set(id string, value []byte) {
	if err := c.Put(id, value, c.ttl); err != nil {
		c.logger.Error("error writing cache entry", zap.Error(err))
	}
}

// Delete removes the entry for id, if any.
func (c *Cache) Delete(id string) {
	c.erase(c.key(id))
}

func (c *Cache) erase(key string) {
	if err := c.d.Erase(key); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("error deleting cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Flush removes every file under the cache root that carries the cache
// extension.  Other files are left alone.
func (c *Cache) Flush() error {
	var errs error
	err := c.walk(func(path string) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, err)
		}
	})
	return multierr.Append(err, errs)
}

// PurgeExpired removes expired and unreadable entries, returning how many
// files were removed.
func (c *Cache) PurgeExpired() (int, error) {
	now := c.now()
	var n int
	var errs error
	err := c.walk(func(path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = multierr.Append(errs, err)
			}
			return
		}
		if e, err := envelope.Decode(b); err == nil && !e.Expired(now) {
			return
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				errs = multierr.Append(errs, err)
			}
			return
		}
		n++
	})
	return n, multierr.Append(err, errs)
}

// walk calls fn for every cache file under the root.
func (c *Cache) walk(fn func(path string)) error {
	return filepath.WalkDir(c.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), strings.ToLower(c.ext)) {
			return nil
		}
		fn(path)
		return nil
	})
}
