// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

// Config holds the settings of an imagr Proxy.  The mapstructure tags are
// the keys used in configuration files and IMAGR_* environment variables.
type Config struct {
	// CacheDir is the directory holding the remote and resized caches.
	CacheDir string `mapstructure:"cache_dir"`

	// TmpDir stages cache writes before they are renamed into place.  It
	// must be on the same filesystem as CacheDir.  Defaults to
	// CacheDir/tmp.
	TmpDir string `mapstructure:"tmp_dir"`

	// CacheTime is the lifetime, in seconds, of entries in both cache
	// tiers.  Zero caches forever.
	CacheTime int `mapstructure:"cache_time"`

	// Canvas used when a request specifies neither width nor height.
	DefaultWidth  int `mapstructure:"default_width"`
	DefaultHeight int `mapstructure:"default_height"`

	// MimeTypes lists the remote content types that will be resized.
	// Entries may use wildcards, such as "image/*".
	MimeTypes []string `mapstructure:"mime_types"`

	// Debug enables verbose request logging.
	Debug bool `mapstructure:"debug"`

	// Timeout limits each remote fetch.  Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`

	// UserAgent is sent with remote requests.
	UserAgent string `mapstructure:"user_agent"`

	// SmartCrop anchors crops on the most interesting region of the image
	// rather than the center.
	SmartCrop bool `mapstructure:"smart_crop"`

	// MaxPixels limits the size of source images that will be decoded and
	// of the canvases they are resampled to.
	MaxPixels int `mapstructure:"max_pixels"`
}

// DefaultConfig returns the configuration used for unset values.
func DefaultConfig() Config {
	return Config{
		CacheDir:      "cache",
		CacheTime:     24 * 60 * 60,
		DefaultWidth:  100,
		DefaultHeight: 100,
		MimeTypes:     []string{"image/jpeg", "image/png", "image/gif"},
		UserAgent:     "imagr",
		MaxPixels:     DefaultMaxPixels,
	}
}

// TTL returns CacheTime as a duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.CacheTime) * time.Second
}

// TempDir returns the staging directory for cache writes.
func (c Config) TempDir() string {
	if c.TmpDir != "" {
		return c.TmpDir
	}
	return filepath.Join(c.CacheDir, "tmp")
}

// Validate reports settings the proxy cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir must be set"))
	}
	if c.CacheTime < 0 {
		errs = append(errs, fmt.Errorf("cache_time must not be negative, got %d", c.CacheTime))
	}
	if c.DefaultWidth <= 0 || c.DefaultHeight <= 0 {
		errs = append(errs, fmt.Errorf("default size must be positive, got %dx%d", c.DefaultWidth, c.DefaultHeight))
	}
	if len(c.MimeTypes) == 0 {
		errs = append(errs, errors.New("mime_types must not be empty"))
	}
	return multierr.Combine(errs...)
}
