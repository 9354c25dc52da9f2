// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scheduler

import (
	"testing"
	"time"
)

func TestDueEvery(t *testing.T) {
	last := time.Date(2026, time.February, 9, 10, 0, 0, 0, time.UTC)
	if dueEvery(last, last.Add(14*time.Minute), 15*time.Minute) {
		t.Error("dueEvery true after 14m of a 15m interval")
	}
	if !dueEvery(last, last.Add(15*time.Minute), 15*time.Minute) {
		t.Error("dueEvery false exactly at the interval boundary")
	}
	if !dueEvery(last, last.Add(time.Hour), 15*time.Minute) {
		t.Error("dueEvery false well past the interval")
	}
}

func TestDueDailyAtCrossingTheHour(t *testing.T) {
	last := time.Date(2026, time.February, 9, 2, 59, 0, 0, time.UTC)
	before := time.Date(2026, time.February, 9, 2, 59, 30, 0, time.UTC)
	after := time.Date(2026, time.February, 9, 3, 0, 30, 0, time.UTC)

	if dueDailyAt(last, before, 3, time.UTC) {
		t.Error("dueDailyAt true before the scheduled hour was reached")
	}
	if !dueDailyAt(last, after, 3, time.UTC) {
		t.Error("dueDailyAt false after the scheduled hour was crossed")
	}
}

func TestDueDailyAtOnlyFiresOncePerDay(t *testing.T) {
	hour := time.Date(2026, time.February, 9, 3, 0, 0, 0, time.UTC)
	justAfter := hour.Add(time.Minute)

	if dueDailyAt(hour, justAfter, 3, time.UTC) {
		t.Error("dueDailyAt true again right after last already equals the scheduled moment")
	}

	nextDay := hour.AddDate(0, 0, 1).Add(time.Minute)
	if !dueDailyAt(hour, nextDay, 3, time.UTC) {
		t.Error("dueDailyAt false the following day once the hour rolls around again")
	}
}

func TestDueDailyAtRespectsLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	last := time.Date(2026, time.February, 9, 0, 0, 0, 0, time.UTC)
	// 3am in UTC-5 is 08:00 UTC.
	now := time.Date(2026, time.February, 9, 8, 30, 0, 0, time.UTC)
	if !dueDailyAt(last, now, 3, loc) {
		t.Error("dueDailyAt should account for the given location's offset")
	}
}

func TestDedupStrings(t *testing.T) {
	got := dedupStrings([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 {
		t.Fatalf("dedupStrings = %v, want 3 unique entries", got)
	}
}
