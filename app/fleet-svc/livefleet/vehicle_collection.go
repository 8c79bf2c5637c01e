package livefleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/jinzhu/copier"
)

// OverridePolicy decides what happens to crowd overrides when the collection is replaced by a synthesis pass
type OverridePolicy string

const (
	// OverrideDiscard drops every override on replace, the new pass reflects only derived fields
	OverrideDiscard OverridePolicy = "discard"
	// OverrideCarry reapplies overrides to entities that survive the replace and drops those of retired entities
	OverrideCarry OverridePolicy = "carry"
	// OverrideRetain keeps overrides keyed by route and stop through retirement and reapplies them when the pair
	// appears in a later pass
	OverrideRetain OverridePolicy = "retain"
)

// ParseOverridePolicy returns the OverridePolicy named by s
func ParseOverridePolicy(s string) (OverridePolicy, error) {
	switch p := OverridePolicy(s); p {
	case OverrideDiscard, OverrideCarry, OverrideRetain:
		return p, nil
	}
	return "", fmt.Errorf("unknown override policy %q, expected %q, %q or %q", s,
		OverrideDiscard, OverrideCarry, OverrideRetain)
}

// replaceResult describes how a replace changed the collection
type replaceResult struct {
	Retired          int
	Added            int
	Kept             int
	OverridesApplied int
	OverridesDropped int
}

// collectionSnapshot is a point in time copy of the collection
type collectionSnapshot struct {
	At          time.Time
	CurrentSlot string
	NextSlot    string
	Holiday     bool
	Vehicles    []*fleet.Vehicle
}

// vehicleCollection holds the live vehicles of the latest synthesis pass and serializes every change made to them.
// Vehicles only enter the collection through replace, patches and overrides for unknown ids are ignored.
type vehicleCollection struct {
	mu          sync.Mutex
	policy      OverridePolicy
	vehicles    map[fleet.EntityKey]*fleet.Vehicle
	order       []fleet.EntityKey
	overrides   map[fleet.EntityKey]fleet.CrowdLevel
	at          time.Time
	currentSlot string
	nextSlot    string
	holiday     bool
}

// makeVehicleCollection vehicleCollection factory
func makeVehicleCollection(policy OverridePolicy) *vehicleCollection {
	if policy == "" {
		policy = OverrideDiscard
	}
	return &vehicleCollection{
		policy:    policy,
		vehicles:  make(map[fleet.EntityKey]*fleet.Vehicle),
		order:     make([]fleet.EntityKey, 0),
		overrides: make(map[fleet.EntityKey]fleet.CrowdLevel),
	}
}

// replace swaps the whole collection for the vehicles of synthesis. Entities missing from the new pass are retired.
// The collection takes ownership of the synthesized vehicles.
func (c *vehicleCollection) replace(synthesis *fleet.Synthesis) replaceResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := replaceResult{}
	newVehicles := make(map[fleet.EntityKey]*fleet.Vehicle, len(synthesis.Vehicles))
	newOrder := make([]fleet.EntityKey, 0, len(synthesis.Vehicles))
	for _, v := range synthesis.Vehicles {
		newVehicles[v.Id] = v
		newOrder = append(newOrder, v.Id)
		if _, present := c.vehicles[v.Id]; present {
			result.Kept++
		} else {
			result.Added++
		}
	}
	for id := range c.vehicles {
		if _, present := newVehicles[id]; !present {
			result.Retired++
		}
	}

	switch c.policy {
	case OverrideCarry:
		for id := range c.overrides {
			if _, present := newVehicles[id]; !present {
				delete(c.overrides, id)
				result.OverridesDropped++
			}
		}
	case OverrideRetain:
	default:
		result.OverridesDropped = len(c.overrides)
		c.overrides = make(map[fleet.EntityKey]fleet.CrowdLevel)
	}
	for id, level := range c.overrides {
		if v, present := newVehicles[id]; present {
			fleet.CrowdOverride{Id: id, CrowdLevel: level}.Apply(v)
			result.OverridesApplied++
		}
	}

	c.vehicles = newVehicles
	c.order = newOrder
	c.at = synthesis.At
	c.currentSlot = synthesis.CurrentSlot
	c.nextSlot = synthesis.NextSlot
	c.holiday = synthesis.Holiday
	return result
}

// applyOverride sets the crowd level of an existing entity. Returns false when the id is not in the collection.
func (c *vehicleCollection) applyOverride(override fleet.CrowdOverride) (*fleet.Vehicle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, present := c.vehicles[override.Id]
	if !present {
		return nil, false
	}
	override.Apply(v)
	c.overrides[override.Id] = override.CrowdLevel
	return copyVehicle(v), true
}

// applyPatch merges patch into an existing entity and returns the fields it changed.
// Returns false when the id is not in the collection.
func (c *vehicleCollection) applyPatch(patch *fleet.VehiclePatch) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, present := c.vehicles[patch.Id]
	if !present {
		return nil, false
	}
	return patch.Apply(v), true
}

// get returns a copy of the vehicle with id
func (c *vehicleCollection) get(id fleet.EntityKey) (*fleet.Vehicle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, present := c.vehicles[id]
	if !present {
		return nil, false
	}
	return copyVehicle(v), true
}

// snapshot copies every vehicle in synthesis order
func (c *vehicleCollection) snapshot() *collectionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	vehicles := make([]*fleet.Vehicle, 0, len(c.order))
	for _, id := range c.order {
		vehicles = append(vehicles, copyVehicle(c.vehicles[id]))
	}
	return &collectionSnapshot{
		At:          c.at,
		CurrentSlot: c.currentSlot,
		NextSlot:    c.nextSlot,
		Holiday:     c.holiday,
		Vehicles:    vehicles,
	}
}

// size returns the number of live vehicles
func (c *vehicleCollection) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vehicles)
}

// copyVehicle deep copies v so callers never hold a reference into the collection
func copyVehicle(v *fleet.Vehicle) *fleet.Vehicle {
	var result fleet.Vehicle
	if err := copier.CopyWithOption(&result, v, copier.Option{DeepCopy: true}); err != nil {
		return v.Clone()
	}
	if result.NextStops == nil {
		result.NextStops = make([]fleet.NextStop, 0)
	}
	return &result
}
