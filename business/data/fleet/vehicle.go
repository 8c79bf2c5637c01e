// Package fleet synthesizes live vehicle state from a schedule.Table and defines the vehicle, patch and
// override types exchanged with consumers.
package fleet

import (
	"fmt"
	"strings"
)

// CrowdLevel classifies how crowded a vehicle is
type CrowdLevel string

const (
	CrowdLow    CrowdLevel = "low"
	CrowdMedium CrowdLevel = "medium"
	CrowdHigh   CrowdLevel = "high"
)

// ParseCrowdLevel accepts a crowd level name in any case
func ParseCrowdLevel(s string) (CrowdLevel, error) {
	level := CrowdLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCrowdLevel, s)
	}
	return level, nil
}

// Valid returns true for one of the three known levels
func (c CrowdLevel) Valid() bool {
	switch c {
	case CrowdLow, CrowdMedium, CrowdHigh:
		return true
	}
	return false
}

// NextEtaSource records where a Vehicle's NextEta came from
type NextEtaSource string

const (
	// NextEtaScheduled is taken from the following slot's row for the same route and stop
	NextEtaScheduled NextEtaSource = "schedule"
	// NextEtaSynthetic is eta plus the slot length, used when the following slot has no matching row
	NextEtaSynthetic NextEtaSource = "synthetic"
)

// Location is a latitude, longitude pair
type Location struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// NextStop is a placeholder upcoming stop with a synthetic eta in minutes.
// It is not derived from real route sequencing.
type NextStop struct {
	Name string  `json:"name" validate:"required"`
	Eta  float64 `json:"eta" validate:"gte=0"`
}

// Vehicle is the live state of one (route, stop) entity. Vehicles are created by a synthesis pass and are
// only changed afterwards by applying VehiclePatch and CrowdOverride values.
type Vehicle struct {
	Id               EntityKey     `json:"id"`
	Route            string        `json:"route"`
	Destination      string        `json:"destination"`
	Eta              float64       `json:"eta"`
	NextEta          float64       `json:"next_eta"`
	NextEtaSource    NextEtaSource `json:"next_eta_source"`
	CrowdLevel       CrowdLevel    `json:"crowd_level"`
	ComfortScore     float64       `json:"comfort_score"`
	PassengerCount   int           `json:"passenger_count"`
	Capacity         int           `json:"capacity"`
	CurrentStop      string        `json:"current_stop"`
	NextStops        []NextStop    `json:"next_stops"`
	PredictedLoad    float64       `json:"predicted_load"`
	WaitTime         float64       `json:"wait_time"`
	LocationHint     Location      `json:"location_hint"`
	OverrideActive   bool          `json:"override_active"`
	OccupancyPercent int           `json:"occupancy_percent"`
}

// Clone returns a deep copy of v
func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	c := *v
	if v.NextStops != nil {
		c.NextStops = make([]NextStop, len(v.NextStops))
		copy(c.NextStops, v.NextStops)
	}
	return &c
}

// String implements Stringer interface for Vehicle
func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle{id:%s route:%s stop:%s eta:%.1f next:%.1f crowd:%s comfort:%.1f override:%t}",
		v.Id, v.Route, v.CurrentStop, v.Eta, v.NextEta, v.CrowdLevel, v.ComfortScore, v.OverrideActive)
}
