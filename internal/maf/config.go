package maf

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Parameter is a raw "{name, value}" pair as delivered by the MAF source
// (§4.1). Values always arrive as strings.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// VehicleConfig is one vehicle entry under a site in the MAF document.
type VehicleConfig struct {
	VehicleID string `json:"vehicle_id"`
	Enabled   bool   `json:"enabled"`
}

// Site is one site's parameters and vehicle list within a client document.
type Site struct {
	SiteID     string          `json:"site_id"`
	Parameters []Parameter     `json:"parameters"`
	Vehicles   []VehicleConfig `json:"vehicles"`
}

// Document is the top-level client -> site -> {parameters, vehicles} MAF
// document (§4.1).
type Document struct {
	ClientName string `json:"client_name"`
	Sites      []Site `json:"sites"`
}

// SiteConfig is the typed view over one site's parameters, built once per
// run and handed to the constraint manager and solvers. Values are
// reconstituted by name-suffix inference (§4.1) so downstream consumers
// never touch raw strings.
type SiteConfig struct {
	SiteID          string
	values          map[string]TypedValue
	EnabledVehicles map[string]bool // non-empty => restricts scheduling to these ids
}

// NewSiteConfig builds a typed SiteConfig from a raw Site.
func NewSiteConfig(site Site) *SiteConfig {
	sc := &SiteConfig{
		SiteID:          site.SiteID,
		values:          make(map[string]TypedValue, len(site.Parameters)),
		EnabledVehicles: make(map[string]bool),
	}
	for _, p := range site.Parameters {
		sc.values[p.Name] = InferAndParse(p.Name, p.Value)
	}
	if list, ok := sc.JSON("enabled_vehicles"); ok {
		var ids []string
		if json.Unmarshal(list, &ids) == nil {
			for _, id := range ids {
				sc.EnabledVehicles[id] = true
			}
		}
	}
	for _, v := range site.Vehicles {
		if v.Enabled {
			sc.EnabledVehicles[v.VehicleID] = true
		}
	}
	return sc
}

// Bool returns a named boolean parameter and whether it was present. A
// parameter whose name carries no boolean suffix is parsed from its raw
// value; an unparseable value counts as absent.
func (s *SiteConfig) Bool(name string) (bool, bool) {
	v, ok := s.values[name]
	if !ok {
		return false, false
	}
	if v.Kind != KindBool {
		b, err := strconv.ParseBool(strings.TrimSpace(v.Raw))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return v.Bool, true
}

// BoolOr returns the named boolean parameter or a default if absent.
func (s *SiteConfig) BoolOr(name string, def bool) bool {
	if v, ok := s.Bool(name); ok {
		return v
	}
	return def
}

// Number returns a named numeric parameter and whether it was present. A
// parameter whose name carries no numeric suffix is parsed from its raw
// value; an unparseable value counts as absent.
func (s *SiteConfig) Number(name string) (float64, bool) {
	v, ok := s.values[name]
	if !ok {
		return 0, false
	}
	if v.Kind != KindNumber {
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return v.Number, true
}

// NumberOr returns the named numeric parameter or a default if absent.
func (s *SiteConfig) NumberOr(name string, def float64) float64 {
	if v, ok := s.Number(name); ok {
		return v
	}
	return def
}

// String returns a named raw-string parameter and whether it was present.
func (s *SiteConfig) String(name string) (string, bool) {
	v, ok := s.values[name]
	if !ok {
		return "", false
	}
	return v.Raw, true
}

// JSON returns the named parameter's raw JSON payload and whether it parsed
// as JSON.
func (s *SiteConfig) JSON(name string) ([]byte, bool) {
	v, ok := s.values[name]
	if !ok || v.Kind != KindJSON {
		return nil, false
	}
	return v.JSON, true
}

// TimeOfDayOr returns a named time-of-day parameter or a default.
func (s *SiteConfig) TimeOfDayOr(name string, def TimeOfDay) TimeOfDay {
	v, ok := s.values[name]
	if !ok || v.Kind != KindTimeOfDay {
		return def
	}
	return v.Time
}

// VehicleEnabled reports whether the per-site enabled_vehicles restriction
// (when non-empty) allows this vehicle to be scheduled (§4.1).
func (s *SiteConfig) VehicleEnabled(vehicleID string) bool {
	if len(s.EnabledVehicles) == 0 {
		return true
	}
	return s.EnabledVehicles[vehicleID]
}

// ConstraintParam builds the underscore-joined MAF key "constraint_<name>_<param>" used
// throughout §4.2.
func ConstraintParam(constraint, param string) string {
	var b strings.Builder
	b.WriteString("constraint_")
	b.WriteString(constraint)
	if param != "" {
		b.WriteByte('_')
		b.WriteString(param)
	}
	return b.String()
}

// Default site parameters (§4.1).
const (
	DefaultAllocationWindowHours       = 18
	DefaultMaxRoutesPerVehicleInWindow = 5
)
