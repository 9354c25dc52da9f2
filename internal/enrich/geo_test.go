// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package enrich

import "testing"

func TestGeoLookupWithoutReadersReturnsZeroValue(t *testing.T) {
	var g GeoLookup
	res := g.Lookup("198.51.100.1")
	if res.Country != "" || res.City != "" || res.Lat != nil || res.Lon != nil || res.ASNNumber != nil {
		t.Errorf("expected a zero-value GeoResult before any database is loaded, got %+v", res)
	}
}

func TestGeoLookupRejectsUnparsableIP(t *testing.T) {
	var g GeoLookup
	res := g.Lookup("not-an-ip")
	if res.Country != "" {
		t.Errorf("expected zero GeoResult for an unparsable IP, got %+v", res)
	}
}
