package livefleet

import (
	"fmt"
	logger "log"
	"sync"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
)

// liveFleet ties the Synthesizer to the vehicleCollection and is the single entry point for every change
// made to live vehicles: refresh, patch and override.
type liveFleet struct {
	log         *logger.Logger
	synthesizer *fleet.Synthesizer
	collection  *vehicleCollection
	publisher   overridePublicationDestination
	location    *time.Location
	clock       func() time.Time
	refreshMu   sync.Mutex
}

// makeLiveFleet builds liveFleet. location is the time zone slot keys are resolved in
func makeLiveFleet(log *logger.Logger,
	synthesizer *fleet.Synthesizer,
	policy OverridePolicy,
	publisher overridePublicationDestination,
	location *time.Location) *liveFleet {
	if location == nil {
		location = time.Local
	}
	return &liveFleet{
		log:         log,
		synthesizer: synthesizer,
		collection:  makeVehicleCollection(policy),
		publisher:   publisher,
		location:    location,
		clock:       time.Now,
	}
}

// now returns the current time in the service time zone
func (f *liveFleet) now() time.Time {
	return f.clock().In(f.location)
}

// refresh runs a synthesis pass for now and replaces the collection with its result.
// Returns fleet.ErrNotReady when no schedule table has been loaded.
func (f *liveFleet) refresh(now time.Time) (*fleet.Synthesis, error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	start := time.Now()
	synthesis, err := f.synthesizer.Synthesize(now.In(f.location))
	if err != nil {
		return nil, fmt.Errorf("unable to refresh vehicles: %w", err)
	}
	vehicleCount := len(synthesis.Vehicles)
	result := f.collection.replace(synthesis)
	f.log.Printf("Synthesized %d vehicles for slot %s (next %s) holiday:%t. added:%d kept:%d retired:%d "+
		"overrides applied:%d dropped:%d duplicates:%d in %v", vehicleCount, synthesis.CurrentSlot,
		synthesis.NextSlot, synthesis.Holiday, result.Added, result.Kept, result.Retired, result.OverridesApplied,
		result.OverridesDropped, synthesis.Duplicates, time.Since(start))
	return synthesis, nil
}

// applyPatch merges patch into the live vehicle it addresses. Unknown ids are logged and ignored
func (f *liveFleet) applyPatch(patch *fleet.VehiclePatch) bool {
	fields, applied := f.collection.applyPatch(patch)
	if !applied {
		f.log.Printf("Ignoring patch for unknown vehicle %q", patch.Id)
		return false
	}
	f.log.Printf("Patched vehicle %q fields:%v", patch.Id, fields)
	return true
}

// applyOverride sets the crowd level of a live vehicle and publishes a fleet.CrowdOverrideEvent.
// Returns false without error when the vehicle is unknown.
func (f *liveFleet) applyOverride(override fleet.CrowdOverride) (*fleet.Vehicle, bool, error) {
	if err := override.Validate(); err != nil {
		return nil, false, err
	}
	vehicle, applied := f.collection.applyOverride(override)
	if !applied {
		f.log.Printf("Ignoring crowd override for unknown vehicle %q", override.Id)
		return nil, false, nil
	}
	f.log.Printf("Crowd override on %q set to %s", override.Id, override.CrowdLevel)
	if f.publisher != nil {
		event := fleet.NewCrowdOverrideEvent(override, f.now())
		if err := f.publisher.Publish(&event); err != nil {
			f.log.Printf("Unable to publish crowd override event for %q: %v", override.Id, err)
		}
	}
	return vehicle, true, nil
}

// snapshot returns a point in time copy of the live vehicles
func (f *liveFleet) snapshot() *collectionSnapshot {
	return f.collection.snapshot()
}

// vehicle returns a copy of one live vehicle
func (f *liveFleet) vehicle(id fleet.EntityKey) (*fleet.Vehicle, bool) {
	return f.collection.get(id)
}

// ready returns true once the schedule table is loaded
func (f *liveFleet) ready() bool {
	return f.synthesizer.Ready()
}
