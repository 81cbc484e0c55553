// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// GeoEnricher looks up the country for an answer's address. It wraps an
// optional MaxMind country database; EnrichAnswers on a nil *GeoEnricher
// is a no-op, so callers without a database can call it unconditionally.
type GeoEnricher struct {
	db *geoip2.Reader
}

// OpenGeoEnricher opens a MaxMind GeoLite2-Country (or City) database.
func OpenGeoEnricher(path string) (*GeoEnricher, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoEnricher{db: db}, nil
}

// Close releases the underlying database.
func (g *GeoEnricher) Close() error { return g.db.Close() }

// EnrichAnswers fills Answer.Country on every A/AAAA answer in t whose
// address resolves to a country in the database. Answers that fail to
// resolve (private ranges, reserved blocks) are left unlabeled.
func (g *GeoEnricher) EnrichAnswers(t *Txn) {
	if g == nil {
		return
	}
	for i := range t.Answers {
		ip := answerIP(t.Answers[i].RData)
		if ip == nil {
			continue
		}
		rec, err := g.db.Country(ip)
		if err != nil || rec.Country.IsoCode == "" {
			continue
		}
		t.Answers[i].Country = rec.Country.IsoCode
	}
}

func answerIP(r RData) net.IP {
	switch r.Kind {
	case RDataA:
		return net.IPv4(r.A0, r.A1, r.A2, r.A3)
	case RDataAAAA:
		ip := make(net.IP, 16)
		copy(ip, r.AAAA[:])
		return ip
	default:
		return nil
	}
}
