// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package toml

import "time"

// Duration is a TOML wrapper type for time.Duration. It also satisfies
// pflag.Value so config durations can be bound to flags.
type Duration time.Duration

// String returns the string representation of the duration.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

// MarshalText writes duration value in text format.
func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.String()), nil
}

// MarshalTOML write duration into valid TOML.
func (d Duration) MarshalTOML() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Set parses s as a duration.
func (d *Duration) Set(s string) error {
	return d.UnmarshalText([]byte(s))
}

// Type names the flag value type.
func (d *Duration) Type() string { return "duration" }
