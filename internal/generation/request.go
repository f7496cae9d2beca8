package generation

import "fmt"

// Size constraints for generated assets. Sizes are edge lengths in meters
// and must align to the 256m tile grid the rendering backends work in.
const (
	MinSize  = 512
	MaxSize  = 8192
	SizeStep = 256
)

// GenerateRequest is the common parameter shape of every generation route.
// The HTTP layer validates it and then passes it downstream as an opaque
// payload.
type GenerateRequest struct {
	// Lat and Lon locate the center of the requested extent.
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`

	// Size is the edge length of the square extent in meters.
	Size int `json:"size" validate:"required,gte=512,lte=8192"`

	// Rotation tilts the extent clockwise in degrees.
	Rotation int `json:"rotation,omitempty" validate:"gte=-180,lte=180"`

	// OutputSize overrides the rendered raster edge length in pixels.
	OutputSize int `json:"output_size,omitempty" validate:"omitempty,gte=256,lte=8192"`

	// Provider selects the elevation data source. Empty means the catalog
	// default.
	Provider string `json:"provider,omitempty"`

	// Assets names the deliverables within the kind. Owned by the route
	// that accepted the request, never by the client.
	Assets []string `json:"assets,omitempty"`

	// CustomElevation names a file under the configured source directory to
	// use instead of a provider download. Validated against safepath rules
	// at the HTTP boundary.
	CustomElevation string `json:"custom_elevation,omitempty"`

	// Options carries backend-specific tuning passed through untouched.
	Options map[string]any `json:"options,omitempty"`
}

// CheckSize enforces the tile-grid alignment the validator tags cannot
// express.
func (r *GenerateRequest) CheckSize() error {
	if r.Size%SizeStep != 0 {
		return fmt.Errorf("size must be a multiple of %d, got %d", SizeStep, r.Size)
	}
	return nil
}
