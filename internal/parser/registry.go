package parser

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soc-analytics/backend/internal/models"
)

// Registry holds the date parsers by name and maps vendors onto them.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]DateParser
	vendors map[models.Vendor]string
}

// NewRegistry creates a registry with every built-in parser. Offset-less
// values are interpreted in loc (UTC when nil).
func NewRegistry(loc *time.Location) *Registry {
	r := &Registry{
		parsers: make(map[string]DateParser),
		vendors: map[models.Vendor]string{
			models.VendorEDR:       "edr",
			models.VendorSIEM:      "siem",
			models.VendorMeraki:    "meraki_time",
			models.VendorGSuite:    "generic",
			models.VendorSonicWall: "generic",
		},
	}
	r.Register(NewEDRParser(loc))
	r.Register(NewSIEMParser(loc))
	r.Register(NewMerakiTimeParser())
	r.Register(NewMerakiStaticDateParser(loc))
	r.Register(NewGenericParser(loc))
	return r
}

// Register adds or replaces a parser under its Name.
func (r *Registry) Register(p DateParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[strings.ToLower(p.Name())] = p
}

// Get returns a parser by its name.
func (r *Registry) Get(name string) (DateParser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parsers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}

// ForVendor returns the parser that owns a vendor's primary date column.
// A registered parser name is accepted too, so callers can ask for
// "meraki_static" directly.
func (r *Registry) ForVendor(vendor string) (DateParser, error) {
	if v, ok := models.ParseVendor(vendor); ok {
		r.mu.RLock()
		name := r.vendors[v]
		r.mu.RUnlock()
		return r.Get(name)
	}
	return r.Get(vendor)
}

// Names lists the registered parser names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
