// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		query string
		want  RequestParams
	}{
		{"", RequestParams{}},
		{"src=http://a.test/x.jpg", RequestParams{Src: "http://a.test/x.jpg"}},
		{"src=http://a.test/x.jpg&w=400", RequestParams{Src: "http://a.test/x.jpg", Width: 400}},
		{"src=http://a.test/x.jpg&w=400&h=300&c=1", RequestParams{"http://a.test/x.jpg", 400, 300, true}},
		{"src=http://a.test/x.jpg&c=true", RequestParams{Src: "http://a.test/x.jpg", Crop: true}},
		{"src=http://a.test/x.jpg&c=0", RequestParams{Src: "http://a.test/x.jpg"}},
		{"src=http://a.test/x.jpg&c=yes", RequestParams{Src: "http://a.test/x.jpg"}},

		// unusable sizes are treated as unspecified
		{"src=http://a.test/x.jpg&w=-5&h=abc", RequestParams{Src: "http://a.test/x.jpg"}},
		{"src=http://a.test/x.jpg&w=1.5", RequestParams{Src: "http://a.test/x.jpg"}},

		// encoded src with its own query
		{"src=http%3A%2F%2Fa.test%2Fx.png%3Fv%3D1&h=20", RequestParams{Src: "http://a.test/x.png?v=1", Height: 20}},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "http://localhost/?"+tt.query, nil)
		got := ParseRequest(req)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseRequest(%q) mismatch (-want +got):\n%s", tt.query, diff)
		}
	}
}

func TestRequestParams_Validate(t *testing.T) {
	tests := []struct {
		src   string
		valid bool
	}{
		{"http://a.test/x.jpg", true},
		{"http://a.test/x.JPEG", true},
		{"http://a.test/x.png?size=large", true},
		{"http://a.test/dir.d/x.gif#frag", true},
		{"", false},
		{"http://a.test/x.txt", false},
		{"http://a.test/x.webp", false},
		{"http://a.test/x", false},
		{"http://a.test/x.txt?name=y.jpg", false},
	}

	for _, tt := range tests {
		err := RequestParams{Src: tt.src}.validate()
		if tt.valid && err != nil {
			t.Errorf("validate(%q) returned error: %v", tt.src, err)
		}
		if !tt.valid {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("validate(%q) returned %v, want *ValidationError", tt.src, err)
			}
		}
	}
}

func TestRequestParams_CacheKey(t *testing.T) {
	base := RequestParams{Src: "http://a.test/x.jpg", Width: 10, Height: 20}
	if base.CacheKey() != base.CacheKey() {
		t.Errorf("CacheKey is not stable")
	}
	if got := len(base.CacheKey()); got != 32 {
		t.Errorf("CacheKey has length %d, want 32", got)
	}

	for _, other := range []RequestParams{
		{Src: "http://a.test/y.jpg", Width: 10, Height: 20},
		{Src: base.Src, Width: 20, Height: 10},
		{Src: base.Src, Width: 10, Height: 20, Crop: true},
		{Src: base.Src, Width: 102},
	} {
		if other.CacheKey() == base.CacheKey() {
			t.Errorf("CacheKey of %v collides with %v", other, base)
		}
	}
}

func TestRequestParams_String(t *testing.T) {
	tests := []struct {
		p    RequestParams
		want string
	}{
		{RequestParams{Src: "u"}, "u 0x0"},
		{RequestParams{"u", 1, 2, true}, "u 1x2,crop"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() returned %q, want %q", got, tt.want)
		}
	}
}
