// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"errors"
	"fmt"
	"net/http"

	"willnorris.com/go/imagr/internal/filecache"
)

// ValidationError reports a request that cannot be served, such as a
// missing or non-image src, or a remote resource that is not an allowed
// image type.  It is surfaced to callers as 404 Not Found.
type ValidationError struct {
	Message string
	Src     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid image request %q: %s", e.Src, e.Message)
}

// FetchError reports a failure retrieving a remote image.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error fetching remote image %q: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports image bytes that could not be decoded or encoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error decoding image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GeometryError reports dimensions that no canvas can be planned for,
// typically a source image with a zero dimension.
type GeometryError struct {
	Message string
}

func (e *GeometryError) Error() string {
	return "invalid image geometry: " + e.Message
}

// StorageError reports a cache directory that could not be created or
// written.
type StorageError = filecache.StorageError

// statusCode returns the HTTP status used to report err.
func statusCode(err error) int {
	var verr *ValidationError
	var ferr *FetchError
	switch {
	case errors.As(err, &verr):
		return http.StatusNotFound
	case errors.As(err, &ferr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
