// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

// Package s3cache provides an imagr cache tier that stores expiring
// entries on Amazon S3 or an S3-compatible service.
package s3cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"
	"willnorris.com/go/imagr/internal/envelope"
	"willnorris.com/go/imagr/internal/filecache"
)

// Cache stores entries as objects under a bucket prefix.  Object names
// are derived from the entry key with filecache.UniqueID, so a bucket can
// be seeded from a file cache directory.
type Cache struct {
	s3iface.S3API
	bucket, prefix string
	ttl            time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func (c *Cache) objectKey(key string) *string {
	return aws.String(path.Join(c.prefix, filecache.UniqueID(key)))
}

// Get returns the unexpired value stored for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	resp, err := c.GetObject(&s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    c.objectKey(key),
	})
	if err != nil {
		var aerr awserr.Error
		if !errors.As(err, &aerr) || aerr.Code() != s3.ErrCodeNoSuchKey {
			c.logger.Warn("error fetching from s3", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("error reading from s3", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	e, err := envelope.Decode(b)
	if err != nil {
		c.logger.Warn("discarding unreadable s3 entry", zap.String("key", key), zap.Error(err))
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
	k := c.objectKey(key)
	_, err = c.PutObject(&s3.PutObjectInput{
		Body:   aws.ReadSeekCloser(bytes.NewReader(b)),
		Bucket: &c.bucket,
		Key:    k,
	})
	if err != nil {
		return &filecache.StorageError{Op: "put", Path: "s3://" + c.bucket + "/" + *k, Err: err}
	}
	return nil
}

// Set stores value under key with the cache's default lifetime.
func (c *Cache) Set(key string, value []byte) {
	if err := c.Put(key, value, c.ttl); err != nil {
		c.logger.Error("error writing to s3", zap.Error(err))
	}
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) {
	_, err := c.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    c.objectKey(key),
	})
	if err != nil {
		c.logger.Warn("error deleting from s3", zap.String("key", key), zap.Error(err))
	}
}

// New constructs a cache configured using the provided URL string.  URL
// should be of the form: "s3://region/bucket/optional-path-prefix".
// Entries written with Set expire after ttl; zero never expires.
func New(s string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("s3cache: unsupported scheme %q", u.Scheme)
	}

	region := u.Host
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	bucket := parts[0]
	if bucket == "" {
		return nil, fmt.Errorf("s3cache: no bucket in %q", s)
	}
	var prefix string
	if len(parts) > 1 {
		prefix = parts[1]
	}

	config := aws.NewConfig().WithRegion(region)

	// allow overriding some additional config options, mostly useful when
	// working with s3-compatible services other than AWS.
	if v := u.Query().Get("endpoint"); v != "" {
		config = config.WithEndpoint(v)
	}
	if v := u.Query().Get("disableSSL"); v == "1" {
		config = config.WithDisableSSL(true)
	}
	if v := u.Query().Get("s3ForcePathStyle"); v == "1" {
		config = config.WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, err
	}

	return newCache(s3.New(sess), bucket, prefix, ttl, logger), nil
}

func newCache(api s3iface.S3API, bucket, prefix string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		S3API:  api,
		bucket: bucket,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With(zap.String("tier", "s3")),
		now:    time.Now,
	}
}
