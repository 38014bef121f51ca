// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"bytes"
	"encoding/gob"
	"net/http"
	"time"
)

// A Cache stores opaque values by key.  Its method set matches
// httpcache.Cache, so any of those implementations can be used as a tier.
type Cache interface {
	// Get returns the []byte representation of a cached value and a bool
	// set to true if the value was found, or false if not.
	Get(key string) ([]byte, bool)

	// Set stores the []byte representation of a value against a key.
	Set(key string, value []byte)

	// Delete removes the value associated with a key.
	Delete(key string)
}

// ttlCache is implemented by caches that accept a per-entry lifetime and
// report storage failures, such as the file cache.
type ttlCache interface {
	Put(key string, value []byte, ttl time.Duration) error
}

// NopCache provides a no-op cache implementation that doesn't actually cache anything.
var NopCache = new(nopCache)

type nopCache struct{}

func (c nopCache) Get(string) ([]byte, bool) { return nil, false }
func (c nopCache) Set(string, []byte)        {}
func (c nopCache) Delete(string)             {}

// ResizedImage is an encoded output image as stored in the resized cache.
type ResizedImage struct {
	ContentType string
	Bytes       []byte
}

// cachedResource is the serialized form of a FetchedResource.
type cachedResource struct {
	URL       string
	Body      []byte
	Header    map[string][]string
	Extension string
}

func encodeResource(r *FetchedResource) ([]byte, error) {
	return gobEncode(cachedResource{r.URL, r.Body, r.Header, r.Extension})
}

func decodeResource(b []byte) (*FetchedResource, error) {
	var c cachedResource
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&c); err != nil {
		return nil, err
	}
	h := http.Header(c.Header)
	if h == nil {
		h = make(http.Header)
	}
	return &FetchedResource{URL: c.URL, Body: c.Body, Header: h, Extension: c.Extension}, nil
}

func encodeResized(m *ResizedImage) ([]byte, error) {
	return gobEncode(m)
}

func decodeResized(b []byte) (*ResizedImage, error) {
	m := new(ResizedImage)
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(m); err != nil {
		return nil, err
	}
	return m, nil
}

func gobEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
