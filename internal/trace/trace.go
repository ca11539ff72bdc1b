// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package trace provides a single gated-logging helper shared by the
// pipeline, splitters and merger, usable from any of them rather than
// attached per-type.
package trace

import "log"

// T is a verbose-logging switch. The zero value is silent.
type T struct {
	Enabled bool
}

// New returns a T with the given enabled state.
func New(enabled bool) T {
	return T{Enabled: enabled}
}

// Printf logs format/args via the standard logger when t is enabled,
// otherwise it's a no-op.
func (t T) Printf(format string, args ...interface{}) {
	if t.Enabled {
		log.Printf(format, args...)
	}
}
