// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestServedFromCacheCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "imagr_requests_served_from_cache",
		Help: "Number of requests served from the resized image cache.",
	})
	remoteCacheHitCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "imagr_remote_cache_hits",
		Help: "Number of source images read from the remote cache instead of fetched.",
	})
	remoteImageFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "imagr_remote_image_fetch_errors",
		Help: "Total image fetch failures.",
	})
	cacheStorageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "imagr_cache_storage_errors",
		Help: "Total failures writing to a cache tier.",
	}, []string{"tier"})
	rejectedRequestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "imagr_rejected_requests",
		Help: "Requests that could not be served, by HTTP status.",
	}, []string{"code"})
	imageTransformationSummary = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "imagr_image_transformation_seconds",
		Help: "Time taken to decode, resize, and encode images in seconds.",
	})
	httpRequestsResponseTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "http",
		Name:      "response_time_seconds",
		Help:      "Request response times",
	})
)

func init() {
	prometheus.MustRegister(requestServedFromCacheCount)
	prometheus.MustRegister(remoteCacheHitCount)
	prometheus.MustRegister(remoteImageFetchErrors)
	prometheus.MustRegister(cacheStorageErrors)
	prometheus.MustRegister(rejectedRequestCount)
	prometheus.MustRegister(imageTransformationSummary)
	prometheus.MustRegister(httpRequestsResponseTime)
}
