package generation

import (
	"fmt"
	"sort"
)

// Provider describes one elevation data source the terrain backends can
// sample from.
type Provider struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	ResolutionMeters float64 `json:"resolution_meters"`
	Attribution      string  `json:"attribution"`
}

// DefaultProviderCode is used when a request leaves the provider unset.
const DefaultProviderCode = "srtm30"

// Catalog is the set of available elevation providers. Built once during
// wiring and read-only afterwards.
type Catalog struct {
	providers map[string]Provider
}

// NewCatalog builds a catalog from the given providers.
func NewCatalog(providers ...Provider) *Catalog {
	c := &Catalog{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		c.providers[p.Code] = p
	}
	return c
}

// DefaultCatalog returns the providers the rendering toolchain ships with.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Provider{
			Code:             "srtm30",
			Name:             "SRTM 30m",
			ResolutionMeters: 30,
			Attribution:      "NASA Shuttle Radar Topography Mission",
		},
		Provider{
			Code:             "aster30",
			Name:             "ASTER GDEM v3",
			ResolutionMeters: 30,
			Attribution:      "NASA/METI ASTER Global DEM",
		},
		Provider{
			Code:             "cop30",
			Name:             "Copernicus GLO-30",
			ResolutionMeters: 30,
			Attribution:      "ESA Copernicus DEM",
		},
		Provider{
			Code:             "ned10",
			Name:             "USGS 3DEP 10m",
			ResolutionMeters: 10,
			Attribution:      "U.S. Geological Survey 3D Elevation Program",
		},
	)
}

// List returns all providers ordered by code.
func (c *Catalog) List() []Provider {
	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Lookup returns the provider for code or ErrProviderUnknown.
func (c *Catalog) Lookup(code string) (Provider, error) {
	p, ok := c.providers[code]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrProviderUnknown, code)
	}
	return p, nil
}
