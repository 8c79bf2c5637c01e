package fleet

import (
	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
	"github.com/shopspring/decimal"
)

const (
	// VehicleCapacity is the fixed capacity used for every route
	VehicleCapacity = 50
	// HighLoadThreshold is the lowest predicted load classified as CrowdHigh
	HighLoadThreshold = 0.8
	// MediumLoadThreshold is the lowest predicted load classified as CrowdMedium
	MediumLoadThreshold = 0.5
	// NextStopCount is the most placeholder next stops produced for a vehicle
	NextStopCount = 3
	// NextStopSpacingMinutes separates the synthetic etas of consecutive next stops
	NextStopSpacingMinutes = 5
)

var (
	minComfort = decimal.NewFromInt(1)
	maxComfort = decimal.NewFromInt(10)
)

// ClassifyCrowd maps a predicted load fraction onto a CrowdLevel
func ClassifyCrowd(predictedLoad float64) CrowdLevel {
	if predictedLoad >= HighLoadThreshold {
		return CrowdHigh
	}
	if predictedLoad >= MediumLoadThreshold {
		return CrowdMedium
	}
	return CrowdLow
}

// ComfortScore is 10 - 5*load - wait/10 clamped to [1,10] and rounded half up to one decimal.
// Arithmetic is done in decimal so scores such as 5.35 round to 5.4.
func ComfortScore(predictedLoad float64, waitTimeMinutes float64) float64 {
	score := maxComfort.
		Sub(decimal.NewFromFloat(predictedLoad).Mul(decimal.NewFromInt(5))).
		Sub(decimal.NewFromFloat(waitTimeMinutes).Div(decimal.NewFromInt(10)))
	if score.LessThan(minComfort) {
		score = minComfort
	} else if score.GreaterThan(maxComfort) {
		score = maxComfort
	}
	return score.Round(1).InexactFloat64()
}

// PassengerCount rounds predictedLoad * capacity to the nearest passenger
func PassengerCount(predictedLoad float64, capacity int) int {
	return int(decimal.NewFromFloat(predictedLoad).Mul(decimal.NewFromInt(int64(capacity))).Round(0).IntPart())
}

// OccupancyPercent is the share of capacity in use as a whole percentage
func OccupancyPercent(passengerCount int, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(passengerCount * 100)).Div(decimal.NewFromInt(int64(capacity))).Round(0).IntPart())
}

// SyntheticNextStops lists up to NextStopCount stops after currentStop in routeStops, each
// NextStopSpacingMinutes further than the last. The result is a placeholder, routeStops is table order
// and not a real route sequence. An unknown currentStop produces the first stops of the route.
// routeStops is the vehicle's own route, not every stop in the table, and ETAs are fixed steps so repeated
// passes over the same slot derive identical next stops.
func SyntheticNextStops(routeStops []string, currentStop string, eta float64) []NextStop {
	start := 0
	for i, stop := range routeStops {
		if stop == currentStop {
			start = i + 1
			break
		}
	}
	result := make([]NextStop, 0, NextStopCount)
	for i := start; i < len(routeStops) && len(result) < NextStopCount; i++ {
		if routeStops[i] == currentStop {
			continue
		}
		result = append(result, NextStop{
			Name: routeStops[i],
			Eta:  eta + float64(NextStopSpacingMinutes*(len(result)+1)),
		})
	}
	return result
}

// DeriveVehicle builds the Vehicle for row. next is the following slot's row for the same route and stop,
// or nil when there is none, in which case NextEta falls back to eta plus SlotMinutes.
func DeriveVehicle(row schedule.Row, next *schedule.Row, routeStops []string, location Location) *Vehicle {
	eta := row.WaitTimeMinutes
	nextEta := eta + SlotMinutes
	nextEtaSource := NextEtaSynthetic
	if next != nil {
		nextEta = next.WaitTimeMinutes
		nextEtaSource = NextEtaScheduled
	}
	passengers := PassengerCount(row.PredictedLoad, VehicleCapacity)
	return &Vehicle{
		Id:               MakeEntityKey(row.Route, row.Stop),
		Route:            row.Route,
		Destination:      row.Route,
		Eta:              eta,
		NextEta:          nextEta,
		NextEtaSource:    nextEtaSource,
		CrowdLevel:       ClassifyCrowd(row.PredictedLoad),
		ComfortScore:     ComfortScore(row.PredictedLoad, row.WaitTimeMinutes),
		PassengerCount:   passengers,
		Capacity:         VehicleCapacity,
		CurrentStop:      row.Stop,
		NextStops:        SyntheticNextStops(routeStops, row.Stop, eta),
		PredictedLoad:    row.PredictedLoad,
		WaitTime:         row.WaitTimeMinutes,
		LocationHint:     location,
		OccupancyPercent: OccupancyPercent(passengers, VehicleCapacity),
	}
}
