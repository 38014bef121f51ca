// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// imageExtensions are the src suffixes accepted by the proxy.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// RequestParams specifies the image to fetch and the canvas to fit it to.
type RequestParams struct {
	Src string // absolute URL of the source image

	// Requested canvas size in pixels.  Zero means not specified.
	Width  int
	Height int

	// If true, fill the canvas exactly and crop the excess.  Otherwise the
	// image is resized to the canvas without cropping.
	Crop bool
}

func (p RequestParams) String() string {
	s := fmt.Sprintf("%s %dx%d", p.Src, p.Width, p.Height)
	if p.Crop {
		s += ",crop"
	}
	return s
}

// CacheKey returns the key the resized result of p is cached under.
func (p RequestParams) CacheKey() string {
	h := md5.New()
	fmt.Fprintf(h, "%s|%d|%d|%t", p.Src, p.Width, p.Height, p.Crop)
	return hex.EncodeToString(h.Sum(nil))
}

// ParseRequest reads image request parameters from the query string of r:
// src, w, h, and c.  Missing, malformed, or non-positive sizes are left
// unspecified.
func ParseRequest(r *http.Request) RequestParams {
	q := r.URL.Query()
	return RequestParams{
		Src:    strings.TrimSpace(q.Get("src")),
		Width:  parseSize(q.Get("w")),
		Height: parseSize(q.Get("h")),
		Crop:   parseFlag(q.Get("c")),
	}
}

func parseSize(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseFlag(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// urlExtension returns the lowercased extension of the last path segment
// of u, or "" if there is none.  The query string and fragment are
// ignored.
func urlExtension(u string) string {
	p := u
	if parsed, err := url.Parse(u); err == nil {
		p = parsed.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(path.Ext(p))
}

// validate checks that p names a source with an accepted image extension.
func (p RequestParams) validate() error {
	if p.Src == "" {
		return &ValidationError{"missing src", p.Src}
	}
	if ext := urlExtension(p.Src); !imageExtensions[ext] {
		return &ValidationError{fmt.Sprintf("unsupported image extension %q", ext), p.Src}
	}
	return nil
}
