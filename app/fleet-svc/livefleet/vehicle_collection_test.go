package livefleet

import (
	"reflect"
	"testing"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/matryer/is"
)

func TestParseOverridePolicy(t *testing.T) {
	is := is.New(t)
	policy, err := ParseOverridePolicy("retain")
	is.NoErr(err)
	is.Equal(policy, OverrideRetain)
	_, err = ParseOverridePolicy("forever")
	is.True(err != nil)
}

func Test_vehicleCollection_replace(t *testing.T) {
	is := is.New(t)
	f, _, _ := makeTestLiveFleet(t, OverrideDiscard, at(10, 30))

	first, err := f.synthesizer.Synthesize(at(10, 30))
	is.NoErr(err)
	result := f.collection.replace(first)
	is.Equal(result, replaceResult{Added: 4})
	is.Equal(f.collection.size(), 4)

	second, err := f.synthesizer.Synthesize(at(10, 40))
	is.NoErr(err)
	result = f.collection.replace(second)
	is.Equal(result, replaceResult{Kept: 2, Retired: 2})

	_, present := f.collection.get(ccMackHall)
	is.True(!present)
	v, present := f.collection.get(ccOhioUnion)
	is.True(present)
	is.Equal(v.Eta, 5.0)

	snapshot := f.collection.snapshot()
	is.Equal(snapshot.CurrentSlot, "10:40")
	is.Equal(snapshot.NextSlot, "10:50")
	is.Equal(vehicleIds(snapshot.Vehicles), []fleet.EntityKey{ccOhioUnion, beArpsHall})
}

func Test_vehicleCollection_overridePolicies(t *testing.T) {
	type expectation struct {
		crowdLevel     fleet.CrowdLevel
		overrideActive bool
	}
	tests := []struct {
		name           string
		policy         OverridePolicy
		afterSurvival  expectation
		afterReturning expectation
	}{
		{
			name:           "discard",
			policy:         OverrideDiscard,
			afterSurvival:  expectation{crowdLevel: fleet.CrowdLow},
			afterReturning: expectation{crowdLevel: fleet.CrowdHigh},
		},
		{
			name:           "carry",
			policy:         OverrideCarry,
			afterSurvival:  expectation{crowdLevel: fleet.CrowdMedium, overrideActive: true},
			afterReturning: expectation{crowdLevel: fleet.CrowdHigh},
		},
		{
			name:           "retain",
			policy:         OverrideRetain,
			afterSurvival:  expectation{crowdLevel: fleet.CrowdMedium, overrideActive: true},
			afterReturning: expectation{crowdLevel: fleet.CrowdMedium, overrideActive: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, _ := makeTestLiveFleet(t, tt.policy, at(10, 30))
			mustRefresh(t, f, at(10, 30))
			override := fleet.CrowdOverride{Id: ccOhioUnion, CrowdLevel: fleet.CrowdMedium}
			if _, applied, err := f.applyOverride(override); !applied || err != nil {
				t.Fatalf("applyOverride() = %v, %v", applied, err)
			}

			// entity survives into the next slot
			mustRefresh(t, f, at(10, 40))
			v, present := f.vehicle(ccOhioUnion)
			if !present {
				t.Fatalf("vehicle %q missing after refresh", ccOhioUnion)
			}
			got := expectation{crowdLevel: v.CrowdLevel, overrideActive: v.OverrideActive}
			if got != tt.afterSurvival {
				t.Errorf("after survival got %+v, want %+v", got, tt.afterSurvival)
			}

			// entity is retired and later reappears
			mustRefresh(t, f, at(11, 0))
			if _, present = f.vehicle(ccOhioUnion); present {
				t.Fatalf("vehicle %q should be retired", ccOhioUnion)
			}
			mustRefresh(t, f, at(11, 10))
			v, present = f.vehicle(ccOhioUnion)
			if !present {
				t.Fatalf("vehicle %q missing after it reappeared", ccOhioUnion)
			}
			got = expectation{crowdLevel: v.CrowdLevel, overrideActive: v.OverrideActive}
			if got != tt.afterReturning {
				t.Errorf("after returning got %+v, want %+v", got, tt.afterReturning)
			}
		})
	}
}

func Test_vehicleCollection_snapshotIsCopy(t *testing.T) {
	is := is.New(t)
	f, _, _ := makeTestLiveFleet(t, OverrideDiscard, at(10, 30))
	mustRefresh(t, f, at(10, 30))

	snapshot := f.snapshot()
	snapshot.Vehicles[0].Eta = 99
	snapshot.Vehicles[0].NextStops[0].Name = "changed"

	v, present := f.vehicle(snapshot.Vehicles[0].Id)
	is.True(present)
	is.Equal(v.Eta, 4.0)
	is.Equal(v.NextStops[0].Name, "Mack Hall (NB)")

	again := f.snapshot()
	is.Equal(again.Vehicles[0].Eta, 4.0)
}

func Test_vehicleCollection_deterministicRefresh(t *testing.T) {
	f, _, _ := makeTestLiveFleet(t, OverrideDiscard, at(10, 30))
	mustRefresh(t, f, at(10, 30))
	first := f.snapshot()
	mustRefresh(t, f, at(10, 30))
	second := f.snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("refreshing twice at the same time produced different collections")
	}
}

func vehicleIds(vehicles []*fleet.Vehicle) []fleet.EntityKey {
	result := make([]fleet.EntityKey, 0, len(vehicles))
	for _, v := range vehicles {
		result = append(result, v.Id)
	}
	return result
}
