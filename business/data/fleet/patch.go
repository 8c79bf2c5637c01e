package fleet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// VehiclePatch is a partial update to a Vehicle arriving from the push channel. Nil fields are left untouched.
// Id addresses the vehicle and is never reassigned, Route is part of the identity and cannot be patched.
type VehiclePatch struct {
	Id               EntityKey   `json:"id" validate:"required"`
	Destination      *string     `json:"destination,omitempty" validate:"omitempty,min=1"`
	Eta              *float64    `json:"eta,omitempty" validate:"omitempty,gte=0"`
	NextEta          *float64    `json:"next_eta,omitempty" validate:"omitempty,gte=0"`
	CrowdLevel       *CrowdLevel `json:"crowd_level,omitempty" validate:"omitempty,oneof=low medium high"`
	ComfortScore     *float64    `json:"comfort_score,omitempty" validate:"omitempty,gte=1,lte=10"`
	PassengerCount   *int        `json:"passenger_count,omitempty" validate:"omitempty,gte=0"`
	Capacity         *int        `json:"capacity,omitempty" validate:"omitempty,gte=1"`
	CurrentStop      *string     `json:"current_stop,omitempty" validate:"omitempty,min=1"`
	NextStops        []NextStop  `json:"next_stops,omitempty" validate:"omitempty,dive"`
	PredictedLoad    *float64    `json:"predicted_load,omitempty" validate:"omitempty,gte=0,lte=1"`
	WaitTime         *float64    `json:"wait_time,omitempty" validate:"omitempty,gte=0"`
	LocationHint     *Location   `json:"location_hint,omitempty"`
	OccupancyPercent *int        `json:"occupancy_percent,omitempty" validate:"omitempty,gte=0"`
}

// ParseVehiclePatch decodes and validates a JSON VehiclePatch
func ParseVehiclePatch(data []byte) (*VehiclePatch, error) {
	var patch VehiclePatch
	if err := json.Unmarshal(data, &patch); err != nil {
		return nil, fmt.Errorf("unable to decode vehicle patch: %w", err)
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return &patch, nil
}

// Validate checks the patch addresses a vehicle and carries values in range
func (p *VehiclePatch) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid vehicle patch for %q: %w", p.Id, err)
	}
	return nil
}

// Apply merges the patch into v and returns the names of the fields it changed.
// CrowdLevel is skipped while a crowd override is active on v, the override outranks patches.
// OccupancyPercent follows a patched PassengerCount or Capacity unless the patch sets it too.
func (p *VehiclePatch) Apply(v *Vehicle) []string {
	var applied []string
	if p.Destination != nil {
		v.Destination = *p.Destination
		applied = append(applied, "destination")
	}
	if p.Eta != nil {
		v.Eta = *p.Eta
		applied = append(applied, "eta")
	}
	if p.NextEta != nil {
		v.NextEta = *p.NextEta
		applied = append(applied, "next_eta")
	}
	if p.CrowdLevel != nil && !v.OverrideActive {
		v.CrowdLevel = *p.CrowdLevel
		applied = append(applied, "crowd_level")
	}
	if p.ComfortScore != nil {
		v.ComfortScore = *p.ComfortScore
		applied = append(applied, "comfort_score")
	}
	if p.PassengerCount != nil {
		v.PassengerCount = *p.PassengerCount
		applied = append(applied, "passenger_count")
	}
	if p.Capacity != nil {
		v.Capacity = *p.Capacity
		applied = append(applied, "capacity")
	}
	if p.CurrentStop != nil {
		v.CurrentStop = *p.CurrentStop
		applied = append(applied, "current_stop")
	}
	if p.NextStops != nil {
		v.NextStops = make([]NextStop, len(p.NextStops))
		copy(v.NextStops, p.NextStops)
		applied = append(applied, "next_stops")
	}
	if p.PredictedLoad != nil {
		v.PredictedLoad = *p.PredictedLoad
		applied = append(applied, "predicted_load")
	}
	if p.WaitTime != nil {
		v.WaitTime = *p.WaitTime
		applied = append(applied, "wait_time")
	}
	if p.LocationHint != nil {
		v.LocationHint = *p.LocationHint
		applied = append(applied, "location_hint")
	}
	if p.OccupancyPercent != nil {
		v.OccupancyPercent = *p.OccupancyPercent
		applied = append(applied, "occupancy_percent")
	} else if p.PassengerCount != nil || p.Capacity != nil {
		v.OccupancyPercent = OccupancyPercent(v.PassengerCount, v.Capacity)
	}
	return applied
}

// CrowdOverride is a user correction of a vehicle's crowd level
type CrowdOverride struct {
	Id         EntityKey  `json:"id" validate:"required"`
	CrowdLevel CrowdLevel `json:"crowd_level" validate:"required,oneof=low medium high"`
}

// Validate checks the override addresses a vehicle with a known crowd level
func (o CrowdOverride) Validate() error {
	if !o.CrowdLevel.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCrowdLevel, o.CrowdLevel)
	}
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid crowd override for %q: %w", o.Id, err)
	}
	return nil
}

// Apply sets the crowd level on v and marks the override active
func (o CrowdOverride) Apply(v *Vehicle) {
	v.CrowdLevel = o.CrowdLevel
	v.OverrideActive = true
}

// CrowdOverrideEvent is published after a CrowdOverride has been applied to a live vehicle
type CrowdOverrideEvent struct {
	Id         EntityKey  `json:"id"`
	Route      string     `json:"route"`
	Stop       string     `json:"stop"`
	CrowdLevel CrowdLevel `json:"crowd_level"`
	//Timestamp is seconds since epoch when the override was applied
	Timestamp int64 `json:"timestamp"`
}

// NewCrowdOverrideEvent describes override as applied at the given time
func NewCrowdOverrideEvent(override CrowdOverride, at time.Time) CrowdOverrideEvent {
	return CrowdOverrideEvent{
		Id:         override.Id,
		Route:      override.Id.Route(),
		Stop:       override.Id.Stop(),
		CrowdLevel: override.CrowdLevel,
		Timestamp:  at.Unix(),
	}
}
