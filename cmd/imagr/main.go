// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

// imagr starts an HTTP server that serves resized copies of remote images.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"willnorris.com/go/imagr"
)

// newFlagSet returns the command line flags.  Every configuration key
// has a flag of the same name.
func newFlagSet() *pflag.FlagSet {
	d := imagr.DefaultConfig()
	fs := pflag.NewFlagSet("imagr", pflag.ExitOnError)
	fs.String("addr", "localhost:8080", "TCP address to listen on")
	fs.String("config", "", "configuration file (yaml, json, or toml)")
	fs.String("remote_cache", "", "space separated cache tiers placed in front of the remote image cache (see cache.go)")
	fs.String("resized_cache", "", "space separated cache tiers placed in front of the resized image cache")

	fs.String("cache_dir", d.CacheDir, "directory holding the remote and resized caches")
	fs.String("tmp_dir", d.TmpDir, "staging directory for cache writes (default <cache_dir>/tmp)")
	fs.Int("cache_time", d.CacheTime, "cache entry lifetime in seconds; 0 caches forever")
	fs.Int("default_width", d.DefaultWidth, "width used when a request gives no size")
	fs.Int("default_height", d.DefaultHeight, "height used when a request gives no size")
	fs.StringSlice("mime_types", d.MimeTypes, "comma separated list of allowed content types")
	fs.Bool("debug", d.Debug, "print verbose logging messages")
	fs.Duration("timeout", d.Timeout, "time limit for fetching remote images")
	fs.String("user_agent", d.UserAgent, "user agent sent when fetching remote images")
	fs.Bool("smart_crop", d.SmartCrop, "crop to the most interesting region instead of the center")
	fs.Int("max_pixels", d.MaxPixels, "largest source image or output canvas, in pixels")
	return fs
}

func main() {
	flags := newFlagSet()
	flags.Parse(os.Args[1:])

	v := viper.New()
	cfg, err := loadConfig(v, flags)
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("error creating logger: %v", err)
	}
	defer logger.Sync()

	if err := run(v, cfg, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// loadConfig reads the proxy configuration from flags, IMAGR_* environment
// variables, and the optional config file, in that order of precedence.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet) (imagr.Config, error) {
	cfg := imagr.DefaultConfig()
	if err := v.BindPFlags(flags); err != nil {
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
	return cfg, cfg.Validate()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(v *viper.Viper, cfg imagr.Config, logger *zap.Logger) error {
	p, err := imagr.NewProxy(cfg, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tiers := cacheParser{ctx: ctx, ttl: cfg.TTL(), logger: logger}
	if p.RemoteCache, err = tiers.layer(v.GetString("remote_cache"), p.RemoteCache); err != nil {
		return fmt.Errorf("remote_cache: %w", err)
	}
	if p.ResizedCache, err = tiers.layer(v.GetString("resized_cache"), p.ResizedCache); err != nil {
		return fmt.Errorf("resized_cache: %w", err)
	}

	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix("/").Handler(p)

	server := &http.Server{
		Addr:    v.GetString("addr"),
		Handler: r,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdown); err != nil {
			logger.Error("error shutting down server", zap.Error(err))
		}
	}()

	logger.Info("imagr listening", zap.String("addr", server.Addr), zap.String("cache_dir", cfg.CacheDir))
	return server.ListenAndServe()
}
