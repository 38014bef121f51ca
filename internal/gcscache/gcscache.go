// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

// Package gcscache provides an imagr cache tier that stores expiring
// entries on Google Cloud Storage.
package gcscache

import (
	"context"
	"errors"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"willnorris.com/go/imagr/internal/envelope"
	"willnorris.com/go/imagr/internal/filecache"
)

// objectHandle is the subset of *storage.ObjectHandle used by the cache.
type objectHandle interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context) io.WriteCloser
	Delete(ctx context.Context) error
}

// bucketHandle is the subset of *storage.BucketHandle used by the cache.
type bucketHandle interface {
	Object(name string) objectHandle
}

type gcsBucket struct{ *storage.BucketHandle }

func (b gcsBucket) Object(name string) objectHandle { return gcsObject{b.BucketHandle.Object(name)} }

type gcsObject struct{ *storage.ObjectHandle }

func (o gcsObject) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return o.ObjectHandle.NewReader(ctx)
}

func (o gcsObject) NewWriter(ctx context.Context) io.WriteCloser {
	return o.ObjectHandle.NewWriter(ctx)
}

// Cache stores entries as objects in a GCS bucket.
type Cache struct {
	bucket bucketHandle
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	// Timeout bounds each storage operation.  Zero means no limit.
	Timeout time.Duration
}

func (c *Cache) context() (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.Timeout)
	}
	return context.WithCancel(context.Background())
}

func (c *Cache) object(key string) objectHandle {
	return c.bucket.Object(path.Join(c.prefix, filecache.UniqueID(key)))
}

// Get returns the unexpired value stored for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	ctx, cancel := c.context()
	defer cancel()

	r, err := c.object(key).NewReader(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotExist) {
			c.logger.Warn("error reading from gcs", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		c.logger.Warn("error reading from gcs", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	e, err := envelope.Decode(b)
	if err != nil {
		if !errors.Is(err, envelope.ErrEmpty) {
			c.logger.Warn("discarding unreadable gcs entry", zap.String("key", key), zap.Error(err))
		}
		c.Delete(key)
		return nil, false
	}
	if e.Expired(c.now()) {
		c.Delete(key)
		return nil, false
	}
	return e.Value, true
}

// Put stores value under key for ttl.  A ttl of zero never expires.
func (c *Cache) Put(key string, value []byte, ttl time.Duration) error {
	b, err := envelope.Encode(envelope.New(value, ttl, c.now()))
	if err != nil {
		return err
	}

	ctx, cancel := c.context()
	defer cancel()

	name := path.Join(c.prefix, filecache.UniqueID(key))
	w := c.object(key).NewWriter(ctx)
	if _, err := w.Write(b); err != nil {
		w.Close()
		return &filecache.StorageError{Op: "write", Path: "gcs:" + name, Err: err}
	}
	if err := w.Close(); err != nil {
		return &filecache.StorageError{Op: "close", Path: "gcs:" + name, Err: err}
	}
	return nil
}

// Set stores value under key with the cache's default lifetime.
func (c *Cache) Set(key string, value []byte) {
	if err := c.Put(key, value, c.ttl); err != nil {
		c.logger.Error("error writing to gcs", zap.Error(err))
	}
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) {
	ctx, cancel := c.context()
	defer cancel()

	if err := c.object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		c.logger.Warn("error deleting gcs object", zap.String("key", key), zap.Error(err))
	}
}

// New constructs a Cache storing files in the specified GCS bucket.  If prefix
// is not empty, objects will be prefixed with that path. Credentials should
// be specified using one of the mechanisms supported for Application Default
// Credentials (see https://cloud.google.com/docs/authentication/production)
func New(ctx context.Context, bucket, prefix string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	c := NewWithBucket(gcsBucket{client.Bucket(bucket)}, prefix)
	c.ttl = ttl
	if logger != nil {
		c.logger = logger.With(zap.String("tier", "gcs"))
	}
	return c, nil
}

// NewWithBucket constructs a Cache over an existing bucket handle.
// Entries written with Set never expire.
func NewWithBucket(bucket bucketHandle, prefix string) *Cache {
	return &Cache{
		bucket: bucket,
		prefix: prefix,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}
