package fleet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RecommendationKind categorizes advice given for boarding a vehicle
type RecommendationKind string

const (
	RecommendWait         RecommendationKind = "wait"
	RecommendConsiderNext RecommendationKind = "consider_next"
	RecommendGreatChoice  RecommendationKind = "great_choice"
	RecommendModerate     RecommendationKind = "moderate"
)

// Recommendation is boarding advice for a single vehicle
type Recommendation struct {
	Kind    RecommendationKind `json:"kind"`
	Message string             `json:"message"`
	//TimeDifference is NextEta - Eta in minutes
	TimeDifference float64 `json:"time_difference"`
}

// Recommend gives boarding advice for v based on its crowd level, comfort and the gap to the following vehicle
func Recommend(v *Vehicle) Recommendation {
	diff := v.NextEta - v.Eta
	switch {
	case v.CrowdLevel == CrowdLow && diff <= 5:
		return Recommendation{
			Kind:           RecommendWait,
			Message:        fmt.Sprintf("Recommended: Wait %v more minutes for a less crowded bus", diff),
			TimeDifference: diff,
		}
	case v.CrowdLevel == CrowdHigh && diff <= 3:
		return Recommendation{
			Kind:           RecommendConsiderNext,
			Message:        fmt.Sprintf("Consider waiting for the next bus (%v min later) for better comfort", diff),
			TimeDifference: diff,
		}
	case v.ComfortScore >= 8:
		return Recommendation{
			Kind:           RecommendGreatChoice,
			Message:        "Great choice! This bus offers excellent comfort",
			TimeDifference: diff,
		}
	}
	return Recommendation{
		Kind:           RecommendModerate,
		Message:        "Arriving soon - moderate comfort level",
		TimeDifference: diff,
	}
}

// SortByEta orders vehicles by eta, ties broken by id so the order is stable across passes
func SortByEta(vehicles []*Vehicle) {
	sort.SliceStable(vehicles, func(i, j int) bool {
		if vehicles[i].Eta != vehicles[j].Eta {
			return vehicles[i].Eta < vehicles[j].Eta
		}
		return vehicles[i].Id < vehicles[j].Id
	})
}

// FilterRoute returns the vehicles serving route
func FilterRoute(vehicles []*Vehicle, route string) []*Vehicle {
	result := make([]*Vehicle, 0)
	for _, v := range vehicles {
		if v.Route == route {
			result = append(result, v)
		}
	}
	return result
}

// StopArrival is a vehicle at or approaching a stop
type StopArrival struct {
	Vehicle   *Vehicle `json:"vehicle"`
	EtaToStop float64  `json:"eta_to_stop"`
}

// ArrivalsForStop finds vehicles currently at stopName or listing it among their next stops, compared
// without regard to case. Results are sorted by EtaToStop.
func ArrivalsForStop(vehicles []*Vehicle, stopName string) []StopArrival {
	result := make([]StopArrival, 0)
	for _, v := range vehicles {
		if eta, found := etaToStop(v, stopName); found {
			result = append(result, StopArrival{Vehicle: v, EtaToStop: eta})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].EtaToStop != result[j].EtaToStop {
			return result[i].EtaToStop < result[j].EtaToStop
		}
		return result[i].Vehicle.Id < result[j].Vehicle.Id
	})
	return result
}

// etaToStop prefers a next stop entry over the vehicle's own eta
func etaToStop(v *Vehicle, stopName string) (float64, bool) {
	for _, next := range v.NextStops {
		if strings.EqualFold(next.Name, stopName) {
			return next.Eta, true
		}
	}
	if strings.EqualFold(v.CurrentStop, stopName) {
		return v.Eta, true
	}
	return 0, false
}

// NextOnRoute returns the soonest vehicle on v's route reaching v's current stop after v does, or nil
func NextOnRoute(vehicles []*Vehicle, v *Vehicle) *Vehicle {
	reference, found := etaToStop(v, v.CurrentStop)
	if !found {
		return nil
	}
	for _, arrival := range ArrivalsForStop(vehicles, v.CurrentStop) {
		if arrival.Vehicle.Id != v.Id && arrival.Vehicle.Route == v.Route && arrival.EtaToStop > reference {
			return arrival.Vehicle
		}
	}
	return nil
}

// Stats summarizes a vehicle set
type Stats struct {
	ActiveVehicles          int                `json:"active_vehicles"`
	TotalPassengers         int                `json:"total_passengers"`
	AverageOccupancyPercent int                `json:"average_occupancy_percent"`
	AverageComfort          float64            `json:"average_comfort"`
	CrowdLevels             map[CrowdLevel]int `json:"crowd_levels"`
}

// ComputeStats summarizes vehicles. Averages of an empty set are zero
func ComputeStats(vehicles []*Vehicle) Stats {
	stats := Stats{
		ActiveVehicles: len(vehicles),
		CrowdLevels:    map[CrowdLevel]int{CrowdLow: 0, CrowdMedium: 0, CrowdHigh: 0},
	}
	if len(vehicles) == 0 {
		return stats
	}
	occupancy := decimal.Zero
	comfort := decimal.Zero
	for _, v := range vehicles {
		stats.TotalPassengers += v.PassengerCount
		stats.CrowdLevels[v.CrowdLevel]++
		if v.Capacity > 0 {
			occupancy = occupancy.Add(decimal.NewFromInt(int64(v.PassengerCount * 100)).Div(decimal.NewFromInt(int64(v.Capacity))))
		}
		comfort = comfort.Add(decimal.NewFromFloat(v.ComfortScore))
	}
	count := decimal.NewFromInt(int64(len(vehicles)))
	stats.AverageOccupancyPercent = int(occupancy.Div(count).Round(0).IntPart())
	stats.AverageComfort = comfort.Div(count).Round(1).InexactFloat64()
	return stats
}
