// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

// imagr-cache removes expired entries from the imagr cache directories, or
// flushes them entirely.
//
// Usage:
//
//	imagr-cache [--config file] [--cache_dir dir] [--tmp_dir dir] [--tier remote|resized|all] [--flush]
//
// Run it periodically, for example from cron, to reclaim space held by
// entries that have expired but were never requested again.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"willnorris.com/go/imagr"
	"willnorris.com/go/imagr/internal/filecache"
)

// tiers are the cache directories maintained under the cache root.
var tiers = []string{"remote", "resized"}

func newFlagSet() *pflag.FlagSet {
	d := imagr.DefaultConfig()
	fs := pflag.NewFlagSet("imagr-cache", pflag.ExitOnError)
	fs.String("config", "", "imagr configuration file")
	fs.String("cache_dir", d.CacheDir, "directory holding the remote and resized caches")
	fs.String("tmp_dir", d.TmpDir, "staging directory for cache writes (default <cache_dir>/tmp)")
	fs.String("tier", "all", "cache to maintain: remote, resized, or all")
	fs.Bool("flush", false, "remove every entry, not just expired ones")
	return fs
}

func main() {
	fs := newFlagSet()
	fs.Parse(os.Args[1:])

	v := viper.New()
	cfg, err := loadConfig(v, fs)
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("error creating logger: %v", err)
	}
	defer logger.Sync()

	names, err := selectTiers(v.GetString("tier"))
	if err != nil {
		logger.Fatal("invalid tier", zap.Error(err))
	}

	n, err := maintain(cfg, names, v.GetBool("flush"), logger)
	logger.Info("cache maintenance finished", zap.Int("removed", n), zap.Error(err))
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the cache locations the same way imagr does: from
// flags, IMAGR_* environment variables, and the optional config file.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet) (imagr.Config, error) {
	cfg := imagr.DefaultConfig()
	if err := v.BindPFlags(fs); err != nil {
		return cfg, err
	}
	v.SetEnvPrefix("IMAGR")
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading %s: %w", file, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func selectTiers(tier string) ([]string, error) {
	switch tier {
	case "all", "":
		return tiers, nil
	case "remote", "resized":
		return []string{tier}, nil
	}
	return nil, fmt.Errorf("unknown cache tier %q", tier)
}

// maintain purges expired entries from each named cache under
// cfg.CacheDir, or removes all entries if flush is set.  Missing cache
// directories are created empty.  It returns the number of entries removed
// by a purge.
func maintain(cfg imagr.Config, names []string, flush bool, logger *zap.Logger) (int, error) {
	var removed int
	var errs error
	for _, name := range names {
		c, err := filecache.New(name, filecache.Options{
			BaseDir: cfg.CacheDir,
			TempDir: cfg.TempDir(),
			Logger:  logger,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		if flush {
			if err := c.Flush(); err != nil {
				errs = multierr.Append(errs, err)
			}
			logger.Info("flushed cache", zap.String("path", c.Path()))
			continue
		}

		n, err := c.PurgeExpired()
		removed += n
		errs = multierr.Append(errs, err)
		logger.Info("purged expired entries", zap.String("path", c.Path()), zap.Int("removed", n))
	}
	return removed, errs
}
