// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package enrich turns a bare IP into geography, network ownership, name,
// and reputation data for the three collaborators the receiver and
// backfill worker both drive: GeoIP/ASN, reverse DNS, and the threat
// client.
package enrich

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/oschwald/geoip2-golang"

	"github.com/phersys/loginsight/internal/errors"
	"github.com/phersys/loginsight/internal/logging"
)

// GeoResult is the GeoIP/ASN answer for one IP; any field is left at its
// zero value on a miss, never an error.
type GeoResult struct {
	Country   string
	City      string
	Lat       *float64
	Lon       *float64
	ASNNumber *int
	ASNName   string
}

// GeoLookup wraps the two MaxMind-format readers (city, ASN). reload
// opens fresh readers before swapping the atomic pointer, so a lookup in
// flight during a reload always completes against one consistent pair.
type GeoLookup struct {
	cityPath, asnPath string
	log               *logging.Logger

	readers atomic.Pointer[geoReaders]
	mu      sync.Mutex // serialises concurrent reloads
}

type geoReaders struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// NewGeoLookup opens both databases once at startup.
func NewGeoLookup(cityPath, asnPath string, log *logging.Logger) (*GeoLookup, error) {
	g := &GeoLookup{cityPath: cityPath, asnPath: asnPath, log: log}
	if err := g.Reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload re-opens both MMDB files and atomically swaps them in; the old
// readers are closed only once no lookup can still observe them.
func (g *GeoLookup) Reload() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	city, err := geoip2.Open(g.cityPath)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "enrich: open city mmdb")
	}
	asn, err := geoip2.Open(g.asnPath)
	if err != nil {
		city.Close()
		return errors.Wrap(err, errors.KindUnavailable, "enrich: open asn mmdb")
	}

	old := g.readers.Swap(&geoReaders{city: city, asn: asn})
	if old != nil {
		old.city.Close()
		old.asn.Close()
	}
	if g.log != nil {
		g.log.Info("geoip databases reloaded", "city", g.cityPath, "asn", g.asnPath)
	}
	return nil
}

// Lookup resolves ip against both databases. A miss in either is silent;
// the corresponding fields are simply left unset.
func (g *GeoLookup) Lookup(ip string) GeoResult {
	var res GeoResult
	r := g.readers.Load()
	if r == nil {
		return res
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return res
	}

	if city, err := r.city.City(parsed); err == nil {
		res.Country = city.Country.IsoCode
		if name, ok := city.City.Names["en"]; ok {
			res.City = name
		}
		if city.Location.Latitude != 0 || city.Location.Longitude != 0 {
			lat, lon := city.Location.Latitude, city.Location.Longitude
			res.Lat, res.Lon = &lat, &lon
		}
	}

	if asn, err := r.asn.ASN(parsed); err == nil && asn.AutonomousSystemNumber != 0 {
		num := int(asn.AutonomousSystemNumber)
		res.ASNNumber = &num
		res.ASNName = asn.AutonomousSystemOrganization
	}

	return res
}

// Close releases the current pair of readers.
func (g *GeoLookup) Close() {
	if r := g.readers.Load(); r != nil {
		r.city.Close()
		r.asn.Close()
	}
}
