// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig is invalid: %v", err)
	}
	if got, want := cfg.TTL(), 24*time.Hour; got != want {
		t.Errorf("TTL() returned %v, want %v", got, want)
	}
	if got, want := cfg.TempDir(), filepath.Join("cache", "tmp"); got != want {
		t.Errorf("TempDir() returned %q, want %q", got, want)
	}

	cfg.TmpDir = "/var/tmp/imagr"
	if got := cfg.TempDir(); got != "/var/tmp/imagr" {
		t.Errorf("TempDir() returned %q, want explicit TmpDir", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errs   int
	}{
		{"valid", func(c *Config) {}, 0},
		{"cache forever", func(c *Config) { c.CacheTime = 0 }, 0},
		{"no cache dir", func(c *Config) { c.CacheDir = "" }, 1},
		{"negative cache time", func(c *Config) { c.CacheTime = -1 }, 1},
		{"zero default height", func(c *Config) { c.DefaultHeight = 0 }, 1},
		{"no mime types", func(c *Config) { c.MimeTypes = nil }, 1},
		{"everything", func(c *Config) { *c = Config{CacheTime: -5} }, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if got := len(multierr.Errors(cfg.Validate())); got != tt.errs {
				t.Errorf("Validate() returned %d errors, want %d", got, tt.errs)
			}
		})
	}
}
