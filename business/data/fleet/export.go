package fleet

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// vehicleRecord is the flattened csv form of a Vehicle
type vehicleRecord struct {
	Id               string  `csv:"id"`
	Route            string  `csv:"route"`
	CurrentStop      string  `csv:"current_stop"`
	Eta              float64 `csv:"eta"`
	NextEta          float64 `csv:"next_eta"`
	NextEtaSource    string  `csv:"next_eta_source"`
	CrowdLevel       string  `csv:"crowd_level"`
	ComfortScore     float64 `csv:"comfort_score"`
	PassengerCount   int     `csv:"passenger_count"`
	Capacity         int     `csv:"capacity"`
	OccupancyPercent int     `csv:"occupancy_percent"`
	PredictedLoad    float64 `csv:"predicted_load"`
	WaitTime         float64 `csv:"wait_time"`
	Lat              float64 `csv:"lat"`
	Lng              float64 `csv:"lng"`
	OverrideActive   bool    `csv:"override_active"`
	NextStops        string  `csv:"next_stops"`
}

func makeVehicleRecord(v *Vehicle) *vehicleRecord {
	names := make([]string, 0, len(v.NextStops))
	for _, stop := range v.NextStops {
		names = append(names, stop.Name)
	}
	return &vehicleRecord{
		Id:               string(v.Id),
		Route:            v.Route,
		CurrentStop:      v.CurrentStop,
		Eta:              v.Eta,
		NextEta:          v.NextEta,
		NextEtaSource:    string(v.NextEtaSource),
		CrowdLevel:       string(v.CrowdLevel),
		ComfortScore:     v.ComfortScore,
		PassengerCount:   v.PassengerCount,
		Capacity:         v.Capacity,
		OccupancyPercent: v.OccupancyPercent,
		PredictedLoad:    v.PredictedLoad,
		WaitTime:         v.WaitTime,
		Lat:              v.LocationHint.Lat,
		Lng:              v.LocationHint.Lng,
		OverrideActive:   v.OverrideActive,
		NextStops:        strings.Join(names, "|"),
	}
}

// WriteVehiclesCSV writes vehicles as csv with a header line. Next stop names are joined with '|'
func WriteVehiclesCSV(w io.Writer, vehicles []*Vehicle) error {
	records := make([]*vehicleRecord, 0, len(vehicles))
	for _, v := range vehicles {
		records = append(records, makeVehicleRecord(v))
	}
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("unable to write vehicles csv: %w", err)
	}
	return nil
}
