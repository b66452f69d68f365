// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cohort

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricCacheHits      = "cache_hits_total"
	MetricCacheMisses    = "cache_misses_total"
	MetricCacheEvictions = "cache_evictions_total"
	MetricLoads          = "loads_total"
	MetricLoadDuration   = "load_duration_seconds"
	MetricJoinOrphans    = "join_orphans_total"
)

const metricNamespace = "cohort"

// Values of the cache label.
const (
	cacheRaw      = "raw"
	cacheFiltered = "filtered"
)

var cacheHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      MetricCacheHits,
		Help:      "Cache lookups that found an entry.",
	},
	[]string{"cache"},
)

var cacheMisses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      MetricCacheMisses,
		Help:      "Cache lookups that found nothing.",
	},
	[]string{"cache"},
)

var cacheEvictions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      MetricCacheEvictions,
		Help:      "Entries dropped to make room.",
	},
	[]string{"cache"},
)

var counterLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      MetricLoads,
		Help:      "Loader invocations per registry.",
	},
	[]string{"registry"},
)

var histogramLoadDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: metricNamespace,
		Name:      MetricLoadDuration,
		Help:      "Time spent reading and adapting one registry.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	},
)

var counterJoinOrphans = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      MetricJoinOrphans,
		Help:      "Dependent rows whose key did not resolve through their parent.",
	},
	[]string{"registry"},
)

func init() {
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
	prometheus.MustRegister(cacheEvictions)
	prometheus.MustRegister(counterLoads)
	prometheus.MustRegister(histogramLoadDuration)
	prometheus.MustRegister(counterJoinOrphans)
}
