package fleet

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultLocation is used for any stop missing from a StopLocations table (Ohio Union)
var DefaultLocation = Location{Lat: 40.0025, Lng: -83.0195}

// StopLocations is a static, non-authoritative lookup from stop name to coordinates
type StopLocations struct {
	Default Location            `yaml:"default"`
	Stops   map[string]Location `yaml:"stops" validate:"dive,keys,required,endkeys"`
}

// Lookup returns the location of stopName, or the table's default when the name is unknown
func (s *StopLocations) Lookup(stopName string) Location {
	if s == nil {
		return DefaultLocation
	}
	if location, present := s.Stops[stopName]; present {
		return location
	}
	return s.Default
}

// Known returns true if stopName has its own entry
func (s *StopLocations) Known(stopName string) bool {
	if s == nil {
		return false
	}
	_, present := s.Stops[stopName]
	return present
}

// DefaultStopLocations returns the built-in campus stop table
func DefaultStopLocations() *StopLocations {
	return &StopLocations{
		Default: DefaultLocation,
		Stops: map[string]Location{
			"Mount Hall (WB)":                {Lat: 40.0050, Lng: -83.0300},
			"Carmack 5 (NB)":                 {Lat: 40.0065, Lng: -83.0285},
			"Carmack 5 (SB)":                 {Lat: 40.0065, Lng: -83.0285},
			"Research Center (SB)":           {Lat: 40.0000, Lng: -83.0100},
			"Kinnear Rd Lot (EB)":            {Lat: 40.0070, Lng: -83.0310},
			"Blankenship Hall (EB)":          {Lat: 40.0040, Lng: -83.0240},
			"Midwest Campus (EB)":            {Lat: 40.0030, Lng: -83.0220},
			"St. John Arena (EB)":            {Lat: 40.0070, Lng: -83.0310},
			"Fontana Lab (EB)":               {Lat: 40.0020, Lng: -83.0180},
			"Stillman Hall (SB)":             {Lat: 40.0010, Lng: -83.0165},
			"Ohio Union (SB)":                {Lat: 40.0025, Lng: -83.0195},
			"Ohio Union (NB)":                {Lat: 40.0025, Lng: -83.0195},
			"Siebert Hall (WB)":              {Lat: 40.0040, Lng: -83.0240},
			"Mack Hall (NB)":                 {Lat: 40.0045, Lng: -83.0255},
			"Herrick Drive Transit Hub (NB)": {Lat: 40.0030, Lng: -83.0220},
			"11th & Worthington (EB)":        {Lat: 40.0065, Lng: -83.0285},
			"Arps Hall (NB)":                 {Lat: 40.0050, Lng: -83.0300},
			"Blackburn House (WB)":           {Lat: 40.0020, Lng: -83.0180},
			"Mason Hall (WB)":                {Lat: 40.0010, Lng: -83.0165},
		},
	}
}

// ReadStopLocations decodes a YAML stop table. A missing default falls back to DefaultLocation
func ReadStopLocations(r io.Reader) (*StopLocations, error) {
	locations := StopLocations{Default: DefaultLocation}
	if err := yaml.NewDecoder(r).Decode(&locations); err != nil {
		return nil, fmt.Errorf("unable to decode stop locations: %w", err)
	}
	if locations.Stops == nil {
		locations.Stops = make(map[string]Location)
	}
	if err := validate.Struct(&locations); err != nil {
		return nil, fmt.Errorf("invalid stop locations: %w", err)
	}
	return &locations, nil
}

// LoadStopLocationsFile reads a YAML stop table from path
func LoadStopLocationsFile(path string) (*StopLocations, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open stop location file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	return ReadStopLocations(file)
}
