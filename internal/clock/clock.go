// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package clock abstracts time so schedulers and cache-freshness checks
// can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of time.Time construction the pipeline depends on.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock backed by the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Frozen is a test Clock that always returns the same instant.
type Frozen struct {
	T time.Time
}

func (f Frozen) Now() time.Time { return f.T }

// Default is the Clock used outside of tests.
var Default Clock = Real{}
