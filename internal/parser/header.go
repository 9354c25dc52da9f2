// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package parser

import (
	"regexp"
	"strconv"
	"time"
)

// syslogHeader matches "Feb  8 16:43:49 host body...". Host is a single
// token (hostname); body is everything after it.
var syslogHeader = regexp.MustCompile(`^(\w+)\s+(\d+)\s+(\d+):(\d+):(\d+)\s+(\S+)\s+(.+)$`)

// priorityPrefix matches an optional leading "<NN>" RFC3164 priority tag.
var priorityPrefix = regexp.MustCompile(`^<\d+>`)

var months = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

type header struct {
	month, day, hour, minute, second int
	host, body                       string
}

// parseHeader matches the syslog header, stripping a leading priority
// token and retrying once on a first miss.
func parseHeader(line string) (header, bool) {
	if h, ok := matchHeader(line); ok {
		return h, true
	}
	stripped := priorityPrefix.ReplaceAllString(line, "")
	if stripped == line {
		return header{}, false
	}
	return matchHeader(stripped)
}

func matchHeader(line string) (header, bool) {
	m := syslogHeader.FindStringSubmatch(line)
	if m == nil {
		return header{}, false
	}
	monthNum, ok := months[m[1]]
	if !ok {
		return header{}, false
	}
	day, err1 := strconv.Atoi(m[2])
	hour, err2 := strconv.Atoi(m[3])
	minute, err3 := strconv.Atoi(m[4])
	second, err4 := strconv.Atoi(m[5])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return header{}, false
	}
	return header{
		month: monthNum, day: day, hour: hour, minute: minute, second: second,
		host: m[6], body: m[7],
	}, true
}

// resolveTimestamp converts a header's month/day/time, interpreted in
// loc, to a UTC instant, disambiguating the missing year: only roll back
// to the previous year when the header month is more than six months
// ahead of the current month. A naive "timestamp is in the future" check
// would misdate same-day logs whenever the sender's clock leads the
// receiver's by even a few seconds.
func resolveTimestamp(h header, now time.Time, loc *time.Location) time.Time {
	nowLocal := now.In(loc)
	year := nowLocal.Year()
	if h.month-int(nowLocal.Month()) > 6 {
		year--
	}
	local := time.Date(year, time.Month(h.month), h.day, h.hour, h.minute, h.second, 0, loc)
	return local.UTC()
}
