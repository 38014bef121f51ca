// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PaulARoy/azurestoragecache"
	"github.com/die-net/lrucache"
	"github.com/die-net/lrucache/twotier"
	"github.com/gomodule/redigo/redis"
	rediscache "github.com/gregjones/httpcache/redis"
	"go.uber.org/zap"
	"willnorris.com/go/imagr"
	"willnorris.com/go/imagr/internal/filecache"
	"willnorris.com/go/imagr/internal/gcscache"
	"willnorris.com/go/imagr/internal/s3cache"
)

const defaultMemorySize = 100

// cacheParser builds cache tiers from flag values.  Tiers that support
// expiration are given ttl.
type cacheParser struct {
	ctx    context.Context
	ttl    time.Duration
	logger *zap.Logger
}

// layer places the space separated tiers in list in front of base.  Tiers
// are consulted in the order given, with base last; a hit in a later tier
// is copied into the earlier ones.
func (cp cacheParser) layer(list string, base imagr.Cache) (imagr.Cache, error) {
	fields := strings.Fields(list)
	if len(fields) == 0 {
		return base, nil
	}

	tiers := make([]imagr.Cache, 0, len(fields)+1)
	for _, v := range fields {
		c, err := cp.parse(v)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, c)
	}
	if base != nil && base != imagr.NopCache {
		tiers = append(tiers, base)
	}

	c := tiers[len(tiers)-1]
	for i := len(tiers) - 2; i >= 0; i-- {
		c = twotier.New(tiers[i], c)
	}
	return c, nil
}

// parse returns the Cache implementation described by c.
func (cp cacheParser) parse(c string) (imagr.Cache, error) {
	if c == "memory" {
		c = fmt.Sprintf("memory:%d", defaultMemorySize)
	}

	u, err := url.Parse(c)
	if err != nil {
		return nil, fmt.Errorf("error parsing cache flag: %w", err)
	}

	switch u.Scheme {
	case "azure":
		return azurestoragecache.New("", "", u.Host)
	case "gcs":
		return gcscache.New(cp.ctx, u.Host, strings.TrimPrefix(u.Path, "/"), cp.ttl, cp.logger)
	case "memory":
		return lruCache(u.Opaque)
	case "redis":
		conn, err := redis.DialURL(u.String(), redis.DialPassword(os.Getenv("REDIS_PASSWORD")))
		if err != nil {
			return nil, err
		}
		return rediscache.NewWithClient(conn), nil
	case "s3":
		return s3cache.New(u.String(), cp.ttl, cp.logger)
	case "file":
		return cp.fileCache(u.Path)
	case "":
		return cp.fileCache(c)
	default:
		return nil, fmt.Errorf("unknown cache type %q", u.Scheme)
	}
}

func (cp cacheParser) fileCache(path string) (*filecache.Cache, error) {
	return filecache.New(path, filecache.Options{
		TTL:    cp.ttl,
		Logger: cp.logger.With(zap.String("tier", "file:"+path)),
	})
}

// lruCache creates an LRU Cache with the specified options of the form
// "maxSize:maxAge".  maxSize is specified in megabytes, maxAge is a duration.
func lruCache(options string) (*lrucache.LruCache, error) {
	parts := strings.SplitN(options, ":", 2)
	size, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, err
	}

	var age time.Duration
	if len(parts) > 1 {
		age, err = time.ParseDuration(parts[1])
		if err != nil {
			return nil, err
		}
	}

	return lrucache.New(size*1e6, int64(age.Seconds())), nil
}
