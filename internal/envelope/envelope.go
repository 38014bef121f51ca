// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

// Package envelope provides the expiring record format shared by the imagr
// cache backends.
package envelope

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"
)

// ErrEmpty is returned when decoding a zero-length record.
var ErrEmpty = errors.New("envelope: empty record")

// Entry is a cached value with an optional expiration.
type Entry struct {
	// ExpiresAt is the expiration as unix seconds.  Zero means the entry
	// never expires.  Whole seconds are enough since cache_time is
	// configured in seconds.
	ExpiresAt int64
	Value     []byte
}

// New returns an Entry for value that expires ttl after now.  A ttl of
// zero or less never expires.
func New(value []byte, ttl time.Duration, now time.Time) Entry {
	e := Entry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl).Unix()
	}
	return e
}

// Expired reports whether e has expired at time now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.Unix() > e.ExpiresAt
}

// Encode serializes e.
func Encode(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode.
func Decode(b []byte) (Entry, error) {
	var e Entry
	if len(b) == 0 {
		return e, ErrEmpty
	}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&e); err != nil {
		return e, err
	}
	return e, nil
}
