// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package entity

import (
	"encoding/binary"
	"fmt"

	"github.com/featurebasedb/cohort/field"
	"github.com/zeebo/blake3"
)

// fingerprint digests everything Merge reads from e: keys, attribute
// values, extensions and provenance. Two inputs with the same fingerprint
// contribute the same values to a merge.
func (e *Entity) fingerprint() string {
	h := blake3.New()
	var n [8]byte
	write := func(s string) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	value := func(v field.Value) {
		write(v.Kind().String())
		write(v.String())
	}
	write(e.id)
	write(e.RecordNumber)
	write(e.ContactID)
	for _, a := range attributes {
		vs := a.get(e)
		if len(vs) == 0 {
			continue
		}
		write(a.Name)
		binary.LittleEndian.PutUint64(n[:], uint64(len(vs)))
		_, _ = h.Write(n[:])
		for _, v := range vs {
			value(v)
		}
	}
	for _, k := range e.ExtensionKeys() {
		x := e.ext[k]
		write(k)
		write(fmt.Sprintf("%t %d", x.Unique, len(x.List)))
		value(x.Scalar)
		for _, v := range x.List {
			value(v)
		}
	}
	for _, p := range e.provenance {
		write(p.Registry)
		write(p.Period)
		write(p.DataSource)
	}

	var buf [16]byte
	_, _ = h.Digest().Read(buf[:])
	return string(buf[:])
}
