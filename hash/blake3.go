// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package hash fingerprints cache keys with blake3.
package hash

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// FilterPrefix is the number of leading identifiers of a sorted filter that
// go into its fingerprint.
const FilterPrefix = 5

// FilterKey fingerprints a filtered load from the sorted source names, the
// first FilterPrefix identifiers of sortedIDs and its cardinality. It is
// deliberately approximate: different filters sharing a prefix and size
// collide, so callers must compare the stored filter on a hit.
func FilterKey(names []string, sortedIDs []string) string {
	ns := append([]string(nil), names...)
	sort.Strings(ns)

	hasher := blake3.New()
	var n [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = hasher.Write(n[:])
		_, _ = hasher.Write([]byte(s))
	}
	for _, s := range ns {
		writeString(s)
	}
	_, _ = hasher.Write([]byte{0})
	prefix := sortedIDs
	if len(prefix) > FilterPrefix {
		prefix = prefix[:FilterPrefix]
	}
	for _, id := range prefix {
		writeString(id)
	}
	binary.LittleEndian.PutUint64(n[:], uint64(len(sortedIDs)))
	_, _ = hasher.Write(n[:])

	return sum16(hasher)
}

// sum16 returns the first 16 bytes of h's digest as a hexadecimal string.
func sum16(h *blake3.Hasher) string {
	var buf [16]byte
	_, _ = h.Digest().Read(buf[0:])
	return fmt.Sprintf("%x", buf)
}
