// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

// Package imagr provides an image resizing proxy server.  Requests name a
// remote image and a target canvas; the image is fetched, fitted to the
// canvas, and served.  Both the fetched original and the resized result
// are cached.  For typical use of creating and using a Proxy, see
// cmd/imagr/main.go.
package imagr // import "willnorris.com/go/imagr"

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"
	"willnorris.com/go/imagr/internal/filecache"
)

// stage identifies a step of handling an image request.
type stage int

const (
	awaitingSource stage = iota
	sourceReady
	planningCanvas
	transforming
	encoded
	served
)

var stageNames = [...]string{"awaiting source", "source ready", "planning canvas", "transforming", "encoded", "served"}

func (s stage) String() string { return stageNames[s] }

// Proxy serves resized images.
type Proxy struct {
	Fetcher *RemoteFetcher // fetches remote images on a cache miss
	Codec   Codec          // decodes, resizes, and encodes images

	// RemoteCache holds fetched source images, keyed by source URL.
	RemoteCache Cache

	// ResizedCache holds encoded results, keyed by RequestParams.CacheKey.
	ResizedCache Cache

	Config Config
	Logger *zap.Logger
}

// NewProxy constructs a Proxy from cfg.  Remote images are fetched with
// client, or a default client if nil.
//
// The remote and resized caches are file caches under cfg.CacheDir.  If a
// cache directory cannot be created the error is logged and that tier is
// disabled; the proxy still serves freshly resized images.
func NewProxy(cfg Config, client *http.Client, logger *zap.Logger) (*Proxy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil && cfg.Timeout > 0 {
		client = NewRemoteFetcher(nil).Client
		client.Timeout = cfg.Timeout
	}

	p := &Proxy{
		Fetcher: NewRemoteFetcher(client),
		Codec:   ImagingCodec{MaxPixels: cfg.MaxPixels},
		Config:  cfg,
		Logger:  logger,
	}
	p.Fetcher.UserAgent = cfg.UserAgent
	p.RemoteCache = p.fileCache("remote")
	p.ResizedCache = p.fileCache("resized")
	return p, nil
}

// fileCache opens the named cache directory under the cache root, falling
// back to NopCache if it is unusable.
func (p *Proxy) fileCache(name string) Cache {
	c, err := filecache.New(name, filecache.Options{
		BaseDir: p.Config.CacheDir,
		TempDir: p.Config.TempDir(),
		TTL:     p.Config.TTL(),
		Logger:  p.Logger.With(zap.String("tier", name)),
	})
	if err != nil {
		p.Logger.Error("cache disabled", zap.String("tier", name), zap.Error(err))
		cacheStorageErrors.WithLabelValues(name).Inc()
		return NopCache
	}
	return c
}

// ServeHTTP handles image requests.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/favicon.ico" {
		return // ignore favicon requests
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	timer := time.Now()
	defer func() {
		httpRequestsResponseTime.Observe(time.Since(timer).Seconds())
	}()

	params := ParseRequest(r)
	img, err := p.Resize(r.Context(), params)
	if err != nil {
		code := statusCode(err)
		rejectedRequestCount.WithLabelValues(strconv.Itoa(code)).Inc()
		p.logger().Warn("request rejected", zap.Stringer("params", params), zap.Int("status", code), zap.Error(err))
		if code == http.StatusNotFound {
			w.WriteHeader(code)
			return
		}
		http.Error(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Bytes)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(img.Bytes)
	}
}

// Resize returns the image described by params, fitted to its requested
// canvas and encoded in the source image's format.
func (p *Proxy) Resize(ctx context.Context, params RequestParams) (img *ResizedImage, err error) {
	st := awaitingSource
	defer func() {
		if err != nil {
			err = p.reject(st, err)
		} else if p.Config.Debug {
			p.logger().Info("request served", zap.Stringer("params", params), zap.Stringer("stage", st))
		}
	}()

	if err := params.validate(); err != nil {
		return nil, err
	}

	key := params.CacheKey()
	if img, ok := p.cachedResult(key); ok {
		requestServedFromCacheCount.Inc()
		st = served
		return img, nil
	}

	res, err := p.source(ctx, params.Src)
	if err != nil {
		return nil, err
	}
	st = sourceReady

	if p.allowedContentType(res.Header.Get("Content-Type")) == "" {
		return nil, &ValidationError{"content type not allowed: " + res.Header.Get("Content-Type"), params.Src}
	}
	if len(res.Body) == 0 {
		return nil, &DecodeError{errNoImage}
	}

	timer := time.Now()
	m, format, err := p.codec().Decode(res.Body)
	if err != nil {
		var gerr *GeometryError
		if errors.As(err, &gerr) {
			return nil, err
		}
		return nil, &DecodeError{err}
	}

	st = planningCanvas
	b := m.Bounds()
	plan, err := PlanCanvas(params.Width, params.Height, params.Crop, b.Dx(), b.Dy(), p.Config.DefaultWidth, p.Config.DefaultHeight)
	if err != nil {
		return nil, err
	}
	if err := plan.CheckPixels(p.maxPixels()); err != nil {
		return nil, err
	}

	st = transforming
	m = p.codec().Resample(m, plan.SampleWidth, plan.SampleHeight)
	if plan.Cropped() {
		if p.Config.SmartCrop {
			plan = smartCropPlan(m, plan)
		}
		m = p.codec().Crop(m, plan.CropRect())
	}

	out, err := p.codec().Encode(m, format)
	if err != nil {
		return nil, &DecodeError{err}
	}
	imageTransformationSummary.Observe(time.Since(timer).Seconds())
	st = encoded

	img = &ResizedImage{ContentType: mimeType(format), Bytes: out}
	if b, err := encodeResized(img); err == nil {
		p.store(p.ResizedCache, "resized", key, b)
	}
	st = served
	return img, nil
}

// reject logs a request failure along with the stage it occurred in.
func (p *Proxy) reject(st stage, err error) error {
	if p.Config.Debug {
		p.logger().Info("request failed", zap.Stringer("stage", st), zap.Error(err))
	}
	return err
}

// cachedResult returns the resized image stored under key.
func (p *Proxy) cachedResult(key string) (*ResizedImage, bool) {
	if p.ResizedCache == nil {
		return nil, false
	}
	b, ok := p.ResizedCache.Get(key)
	if !ok {
		return nil, false
	}
	img, err := decodeResized(b)
	if err != nil {
		p.logger().Warn("discarding unreadable resized cache entry", zap.String("key", key), zap.Error(err))
		p.ResizedCache.Delete(key)
		return nil, false
	}
	return img, true
}

// source returns the remote resource at src, from the remote cache if
// possible.  Fetched resources are added to the cache.
func (p *Proxy) source(ctx context.Context, src string) (*FetchedResource, error) {
	if p.RemoteCache != nil {
		if b, ok := p.RemoteCache.Get(src); ok {
			res, err := decodeResource(b)
			if err == nil {
				remoteCacheHitCount.Inc()
				return res, nil
			}
			p.logger().Warn("discarding unreadable remote cache entry", zap.String("src", src), zap.Error(err))
			p.RemoteCache.Delete(src)
		}
	}

	fetcher := p.Fetcher
	if fetcher == nil {
		fetcher = NewRemoteFetcher(nil)
	}
	if p.Config.Debug {
		p.logger().Info("fetching remote image", zap.String("src", src))
	}
	res, err := fetcher.Fetch(ctx, src)
	if err != nil {
		remoteImageFetchErrors.Inc()
		return nil, err
	}

	if b, err := encodeResource(res); err == nil {
		p.store(p.RemoteCache, "remote", src, b)
	}
	return res, nil
}

// store writes value to c.  Storage failures are logged and otherwise
// ignored; the request is still served.
func (p *Proxy) store(c Cache, tier, key string, value []byte) {
	if c == nil {
		return
	}
	tc, ok := c.(ttlCache)
	if !ok {
		c.Set(key, value)
		return
	}
	if err := tc.Put(key, value, p.Config.TTL()); err != nil {
		cacheStorageErrors.WithLabelValues(tier).Inc()
		p.logger().Error("error storing cache entry", zap.String("tier", tier), zap.Error(err))
	}
}

// allowedContentType returns an allowed content type string or empty
// string if content type is not allowed.
func (p *Proxy) allowedContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	for _, pattern := range p.Config.MimeTypes {
		if ok, err := path.Match(pattern, mediaType); ok && err == nil {
			return mediaType
		}
	}

	return ""
}

// maxPixels returns the largest canvas, in pixels, that will be rendered.
func (p *Proxy) maxPixels() int {
	if p.Config.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return p.Config.MaxPixels
}

func (p *Proxy) codec() Codec {
	if p.Codec == nil {
		return ImagingCodec{}
	}
	return p.Codec
}

func (p *Proxy) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
