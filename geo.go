package main

import (
	"fmt"
	"net"
	"strings"

	geoip2 "github.com/oschwald/geoip2-golang"
)

// GeoFilter restricts non-private clients to an allow list of countries.
// The admission table still applies on top of it.
type GeoFilter struct {
	db      *geoip2.Reader
	allowed map[string]struct{}
	strict  bool
}

// NewGeoFilter opens the configured GeoIP database. Returns nil when the
// restriction is not configured.
func NewGeoFilter(cfg GeoConfig) (*GeoFilter, error) {
	if cfg.MMDBPath == "" || len(cfg.AllowedCountries) == 0 {
		return nil, nil
	}

	db, err := geoip2.Open(cfg.MMDBPath)
	if err != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedCountries))
	for _, country := range cfg.AllowedCountries {
		allowed[strings.ToUpper(strings.TrimSpace(country))] = struct{}{}
	}

	return &GeoFilter{db: db, allowed: allowed, strict: cfg.Strict}, nil
}

// Allowed reports whether ip resolves to an allowed country. Lookup failures
// reject only in strict mode.
func (g *GeoFilter) Allowed(ip net.IP) bool {
	record, err := g.db.Country(ip)
	if err != nil || record == nil || record.Country.IsoCode == "" {
		return !g.strict
	}

	_, ok := g.allowed[record.Country.IsoCode]
	return ok
}

// Close releases the GeoIP database.
func (g *GeoFilter) Close() {
	if err := g.db.Close(); err != nil {
		logger.Warnf("error closing geoip db: %v", err)
	}
}
