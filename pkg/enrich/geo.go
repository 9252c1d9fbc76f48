// Package enrich resolves public addresses to country metadata for
// node labels. Lookups hit an in-memory map first, then the badger
// disk cache, and only then the GeoIP database, so a restart does not
// re-resolve a population the previous run already labeled.
package enrich

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/biter777/countries"
	"github.com/oschwald/maxminddb-golang"
)

// Info is the enrichment result for one address.
type Info struct {
	CountryCode string `json:"cc"`
	CountryName string `json:"name"`
}

// Resolver maps addresses to country info. The disk cache is optional;
// without it the resolver still works, just cold on every start.
type Resolver struct {
	mmdb  *maxminddb.Reader
	cache *DiskCache
	mem   sync.Map
}

// NewResolver opens the GeoIP database at mmdbPath. cachePath may be
// empty to run without the persistent cache.
func NewResolver(mmdbPath, cachePath string) (*Resolver, error) {
	mmdb, err := maxminddb.Open(mmdbPath)
	if err != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	r := &Resolver{mmdb: mmdb}
	if cachePath != "" {
		cache, err := OpenDiskCache(cachePath)
		if err != nil {
			mmdb.Close()
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

func (r *Resolver) Close() error {
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			return err
		}
	}
	return r.mmdb.Close()
}

// Lookup resolves addr. The second return is false for non-addresses,
// non-public addresses, and addresses the database does not cover.
func (r *Resolver) Lookup(addr string) (Info, bool) {
	ip := net.ParseIP(addr)
	if ip == nil || !isPublic(ip) {
		return Info{}, false
	}

	if v, ok := r.mem.Load(addr); ok {
		info := v.(Info)
		return info, info.CountryCode != ""
	}
	if r.cache != nil {
		if info, ok, _ := r.cache.Get(addr); ok {
			r.mem.Store(addr, info)
			return info, info.CountryCode != ""
		}
	}

	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	info := Info{}
	if err := r.mmdb.Lookup(ip, &record); err == nil && record.Country.ISOCode != "" {
		info.CountryCode = record.Country.ISOCode
		info.CountryName = countryName(record.Country.ISOCode)
	}

	// Negative results are cached too: an address the database does
	// not cover stays uncovered for the life of the process.
	r.mem.Store(addr, info)
	if r.cache != nil {
		if err := r.cache.Put(addr, info); err != nil {
			log.Printf("[enrich] cache write for %s failed: %v", addr, err)
		}
	}
	return info, info.CountryCode != ""
}

// Label returns a display label for addr: "addr (Country)" when the
// address resolves, addr unchanged when it does not.
func (r *Resolver) Label(addr string) string {
	info, ok := r.Lookup(addr)
	if !ok {
		return addr
	}
	return fmt.Sprintf("%s (%s)", addr, info.CountryName)
}

func countryName(cc string) string {
	name := countries.ByName(cc).String()
	if name == "Unknown" {
		return cc
	}
	return name
}

func isPublic(ip net.IP) bool {
	return !ip.IsPrivate() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}
