// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package entity

import "github.com/featurebasedb/cohort/errors"

// Policy selects how Merge treats a scalar present on both sides.
type Policy int

const (
	// FillAbsent keeps the destination's scalars and only takes the
	// source's where the destination has none. Joins use it.
	FillAbsent Policy = iota
	// LastWins lets every non-null source scalar replace the destination's.
	// Longitudinal assembly uses it, feeding periods oldest first.
	LastWins
)

func (p Policy) String() string {
	if p == LastWins {
		return "last-wins"
	}
	return "fill-absent"
}

// Merge folds src into dst and is the only place entities are combined.
// Scalars follow p. Canonical lists append every value, so lists filled from
// the same rows stay index-aligned; only extension lists marked unique skip
// values they already hold. Extension keys and provenance are unioned. The identifier is taken from
// src when dst has none; differing identifiers fail with ErrValidation and
// leave dst unchanged. src is never modified, and merging an entity into
// itself changes nothing.
func Merge(dst, src *Entity, p Policy) error {
	if dst == src {
		return nil
	}
	if dst.id != "" && src.id != "" && dst.id != src.id {
		return errors.Newf(errors.ErrValidation, "cannot merge entity %s into %s", src.id, dst.id)
	}
	if dst.id == "" {
		dst.id = src.id
	}
	mergeKey(&dst.RecordNumber, src.RecordNumber, p)
	mergeKey(&dst.ContactID, src.ContactID, p)

	for _, a := range attributes {
		a.merge(dst, src, p)
	}

	for k, x := range src.ext {
		if dst.ext == nil {
			dst.ext = make(map[string]*Extension, len(src.ext))
		}
		d, ok := dst.ext[k]
		if !ok {
			dst.ext[k] = x.clone()
			continue
		}
		if x.Scalar.Valid() && (!d.Scalar.Valid() || p == LastWins) {
			d.Scalar = x.Scalar
		}
		for _, v := range x.List {
			d.add(v, x.Unique)
		}
	}

	for _, pv := range src.provenance {
		dst.AddProvenance(pv)
	}
	return nil
}

func mergeKey(dst *string, src string, p Policy) {
	if src == "" {
		return
	}
	if *dst == "" || p == LastWins {
		*dst = src
	}
}

// Merged returns the result of merging src into a copy of dst. Neither
// argument is modified.
func Merged(dst, src *Entity, p Policy) (*Entity, error) {
	out := dst.Clone()
	if err := Merge(out, src, p); err != nil {
		return nil, err
	}
	return out, nil
}
