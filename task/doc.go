// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package task provides the two scheduling shapes loads run under.
//
// A Group fans independent work out to a bounded number of goroutines and
// stops at the first error, for data-parallel work such as reading the
// files of one registry or loading several registries at once.
//
// A Controller hands out a fixed number of slots, optionally paced by a
// rate limiter, for asynchronous loads started by callers that do not wait
// for them. A caller that cannot get a slot before its context ends gets an
// ErrLock error and never starts its work.
//
// Results are always returned in submission order, so the order in which
// work completes never shows through.
package task
