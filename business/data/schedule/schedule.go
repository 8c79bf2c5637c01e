// Package schedule holds the time-of-day indexed prediction table that live vehicles are synthesized from.
package schedule

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// column names of the tabular schedule resource
const (
	ColumnStop          = "bus_stop"
	ColumnRoute         = "route"
	ColumnTime          = "time"
	ColumnPredictedLoad = "predicted_bus_load"
	ColumnWaitTime      = "wait_time_min"
	ColumnDayOfWeek     = "day_of_week"
)

var validate = validator.New()

// Row is a single prediction for a stop served by a route at a time slot.
// Rows are immutable once loaded into a Table
type Row struct {
	Stop     string `db:"bus_stop" json:"bus_stop" validate:"required"`
	Route    string `db:"route" json:"route" validate:"required"`
	TimeSlot string `db:"time" json:"time" validate:"required,len=5,datetime=15:04"`
	//PredictedLoad is the predicted fraction of capacity in use
	PredictedLoad   float64 `db:"predicted_bus_load" json:"predicted_bus_load" validate:"gte=0,lte=1"`
	WaitTimeMinutes float64 `db:"wait_time_min" json:"wait_time_min" validate:"gte=0"`
	//DayOfWeek is optional, empty when the source has no day_of_week column
	DayOfWeek string `db:"day_of_week" json:"day_of_week,omitempty"`
}

// validateRow checks value ranges and the time slot format of a Row
func validateRow(row *Row) error {
	if err := validate.Struct(row); err != nil {
		return fmt.Errorf("invalid schedule row %s/%s at %s: %w", row.Route, row.Stop, row.TimeSlot, err)
	}
	return nil
}

// Stop is a unique stop name found in a Table along with a url friendly id
type Stop struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// StopId produces a slug id for a stop name: lower case with every character outside [a-z0-9] replaced by '-'
func StopId(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Stats describes the contents of a Table
type Stats struct {
	TotalRecords int `json:"total_records"`
	UniqueStops  int `json:"unique_stops"`
	UniqueRoutes int `json:"unique_routes"`
	Slots        int `json:"slots"`
}
