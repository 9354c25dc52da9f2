// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"strings"
	"testing"
	"time"
)

func TestFilterCompileEmptyMatchesEverything(t *testing.T) {
	c := Filter{}.compile(time.Now(), nil)
	if c.clause != "TRUE" {
		t.Errorf("clause = %q, want TRUE", c.clause)
	}
	if len(c.args) != 0 {
		t.Errorf("args = %v, want none", c.args)
	}
}

func TestFilterCompileTimeRangeToken(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	c := Filter{TimeRange: "24h"}.compile(now, nil)
	if !strings.Contains(c.clause, "origin_timestamp >= $1") {
		t.Errorf("clause = %q, want origin_timestamp >= $1", c.clause)
	}
	if len(c.args) != 1 {
		t.Fatalf("args = %v, want 1", c.args)
	}
	got := c.args[0].(time.Time)
	if !got.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("cutoff = %v, want %v", got, now.Add(-24*time.Hour))
	}
}

func TestFilterCompileExplicitTimeFromWinsOverRange(t *testing.T) {
	now := time.Now()
	from := now.Add(-48 * time.Hour)
	c := Filter{TimeRange: "1h", TimeFrom: &from}.compile(now, nil)
	if c.args[0].(time.Time) != from {
		t.Errorf("expected explicit TimeFrom to win over TimeRange token")
	}
}

func TestFilterCompileVPNOnlyAddsDirectionAndInterfaceDisjunction(t *testing.T) {
	c := Filter{VPNOnly: true}.compile(time.Now(), []string{"tunovpnc", "tun"})
	if !strings.Contains(c.clause, "direction = ANY($1)") {
		t.Errorf("clause = %q, want a direction ANY clause", c.clause)
	}
	if !strings.Contains(c.clause, "interface_in LIKE $2") {
		t.Errorf("clause = %q, want an interface LIKE disjunction", c.clause)
	}
	dirs := c.args[0].([]string)
	if len(dirs) != 1 || dirs[0] != "vpn" {
		t.Errorf("directions = %v, want [vpn]", dirs)
	}
}

func TestFilterCompileVPNOnlyDoesNotDuplicateExplicitVPNDirection(t *testing.T) {
	c := Filter{VPNOnly: true, Directions: []string{"vpn", "inbound"}}.compile(time.Now(), nil)
	dirs := c.args[0].([]string)
	count := 0
	for _, d := range dirs {
		if d == "vpn" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("vpn appears %d times in %v, want exactly 1", count, dirs)
	}
}

func TestFilterCompileSearchEscapesLikeMetacharacters(t *testing.T) {
	c := Filter{Search: "50%_off"}.compile(time.Now(), nil)
	pat := c.args[0].(string)
	if !strings.Contains(pat, `\%`) || !strings.Contains(pat, `\_`) {
		t.Errorf("pattern = %q, want escaped %% and _", pat)
	}
}

func TestFilterCompileCountriesUppercased(t *testing.T) {
	c := Filter{Countries: []string{"us", "De"}}.compile(time.Now(), nil)
	got := c.args[0].([]string)
	if got[0] != "US" || got[1] != "DE" {
		t.Errorf("countries = %v, want [US DE]", got)
	}
}

func TestResolveSortColumnRejectsUnknown(t *testing.T) {
	if got := ResolveSortColumn("drop table logs"); got != "origin_timestamp" {
		t.Errorf("ResolveSortColumn = %q, want origin_timestamp fallback", got)
	}
	if got := ResolveSortColumn("threat_score"); got != "threat_score" {
		t.Errorf("ResolveSortColumn = %q, want threat_score", got)
	}
}

func TestClampPageSize(t *testing.T) {
	cases := map[int]int{0: 50, -5: 50, 1: 1, 200: 200, 500: 200, 75: 75}
	for in, want := range cases {
		if got := ClampPageSize(in); got != want {
			t.Errorf("ClampPageSize(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestClampExportLimit(t *testing.T) {
	cases := map[int]int{0: 10000, -1: 10000, 100000: 100000, 500000: 100000, 42: 42}
	for in, want := range cases {
		if got := ClampExportLimit(in); got != want {
			t.Errorf("ClampExportLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
