// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package toml_test

import (
	"testing"
	"time"

	"github.com/featurebasedb/cohort/toml"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	var d toml.Duration
	require.NoError(t, d.Set("1m30s"))
	require.Equal(t, 90*time.Second, time.Duration(d))
	require.Equal(t, "duration", d.Type())

	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(text))

	out, err := d.MarshalTOML()
	require.NoError(t, err)
	require.Equal(t, `"1m30s"`, string(out))

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
