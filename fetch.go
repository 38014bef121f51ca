// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	aia "github.com/fcjr/aia-transport-go"
)

// fetchedHeaders are the remote response headers kept on a
// FetchedResource.  All others are dropped.
var fetchedHeaders = []string{"Content-Type", "Content-Length", "Server", "Date"}

// FetchedResource is a remote image as retrieved from its origin.
type FetchedResource struct {
	URL       string
	Body      []byte
	Header    http.Header
	Extension string // lowercased extension of the URL path, such as ".jpg"
}

// HeaderValue returns the named header, or def if the origin did not send
// it.
func (r *FetchedResource) HeaderValue(name, def string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return def
}

// RemoteFetcher retrieves remote images.
type RemoteFetcher struct {
	Client *http.Client // client used to fetch remote URLs

	// UserAgent, if set, is sent on every remote request.
	UserAgent string
}

// NewRemoteFetcher returns a RemoteFetcher using client.  If client is nil,
// a client is constructed whose transport fetches missing intermediate
// certificates, since some image hosts serve incomplete chains.
func NewRemoteFetcher(client *http.Client) *RemoteFetcher {
	if client == nil {
		client = new(http.Client)
		if tr, err := aia.NewTransport(); err == nil {
			client.Transport = tr
		}
	}
	return &RemoteFetcher{Client: client}
}

// Fetch performs a single GET of u.  The request carries a Referer of the
// origin's scheme and host, which some origins require before serving
// images.
func (f *RemoteFetcher) Fetch(ctx context.Context, u string) (*FetchedResource, error) {
	if u == "" {
		return nil, &FetchError{u, errors.New("no URL specified")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{u, err}
	}
	if ref := referer(u); ref != "" {
		req.Header.Set("Referer", ref)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{u, err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{u, fmt.Errorf("remote returned status: %v", resp.Status)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{u, fmt.Errorf("reading body: %w", err)}
	}

	res := &FetchedResource{
		URL:       u,
		Body:      b,
		Header:    make(http.Header),
		Extension: urlExtension(u),
	}
	copyHeader(res.Header, resp.Header, fetchedHeaders...)
	return res, nil
}

// copyHeader copies header values from src to dst, adding to any existing
// values with the same header name.  If keys is not empty, only those
// header keys will be copied.
func copyHeader(dst, src http.Header, keys ...string) {
	if len(keys) == 0 {
		for k := range src {
			keys = append(keys, k)
		}
	}
	for _, key := range keys {
		k := http.CanonicalHeaderKey(key)
		for _, v := range src[k] {
			dst.Add(k, v)
		}
	}
}

var refererPattern = regexp.MustCompile(`(?i)^https?://[a-z0-9\-.]*`)

// referer returns the scheme and host prefix of u, or "" if u does not
// begin with one.
func referer(u string) string {
	return refererPattern.FindString(u)
}
