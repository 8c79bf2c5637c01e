// Package scheduleloader provides support for importing weekly crowd prediction schedules into the database
// and for inspecting what the live fleet service would synthesize from them
package scheduleloader

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
	"github.com/jmoiron/sqlx"
)

// ImportSchedule reads the csv schedule at path and replaces the contents of the schedule_prediction table with it.
// The file is fully parsed and validated before the database is touched
func ImportSchedule(log *log.Logger, db *sqlx.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening schedule file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	rows, err := schedule.ReadRows(f, path)
	if err != nil {
		return err
	}
	table, err := schedule.NewTable(rows)
	if err != nil {
		return err
	}
	if err = schedule.EnsureTable(db); err != nil {
		return fmt.Errorf("creating schedule_prediction: %w", err)
	}
	start := time.Now()
	if err = schedule.RecordRows(db, rows); err != nil {
		return err
	}
	count, err := schedule.CountRows(db)
	if err != nil {
		return err
	}
	stats := table.Stats()
	log.Printf("Imported %d schedule rows from %s (%d stops, %d routes, %d slots) in %v", count, path,
		stats.UniqueStops, stats.UniqueRoutes, stats.Slots, time.Since(start))
	return nil
}

// PrintStats writes a summary of table to w: totals, then each route with its stops in route order
func PrintStats(w io.Writer, table *schedule.Table) error {
	stats := table.Stats()
	if _, err := fmt.Fprintf(w, "records:%d stops:%d routes:%d slots:%d\n", stats.TotalRecords, stats.UniqueStops,
		stats.UniqueRoutes, stats.Slots); err != nil {
		return err
	}
	slots := table.Slots()
	if len(slots) > 0 {
		sorted := append([]string(nil), slots...)
		sort.Strings(sorted)
		if _, err := fmt.Fprintf(w, "first slot:%s last slot:%s\n", sorted[0], sorted[len(sorted)-1]); err != nil {
			return err
		}
	}
	for _, route := range table.Routes() {
		if _, err := fmt.Fprintf(w, "%s: %s\n", route, strings.Join(table.RouteStops(route), " > ")); err != nil {
			return err
		}
	}
	return nil
}

// PrintSlotCounts writes the number of rows stored for each slot, in the order given
func PrintSlotCounts(w io.Writer, slots []string, counts map[string]int) error {
	for _, slot := range slots {
		if _, err := fmt.Fprintf(w, "%s: %d rows\n", slot, counts[slot]); err != nil {
			return err
		}
	}
	return nil
}

// SlotTime returns the time at slot ("HH:MM") on reference's date, moved forward to the next weekday
// named by weekday when it is not empty
func SlotTime(reference time.Time, slot string, weekday string) (time.Time, error) {
	at, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, fmt.Errorf("slot %q is not in HH:MM format: %w", slot, err)
	}
	result := time.Date(reference.Year(), reference.Month(), reference.Day(), at.Hour(), at.Minute(), 0, 0,
		reference.Location())
	if weekday == "" {
		return result, nil
	}
	target, err := parseWeekday(weekday)
	if err != nil {
		return time.Time{}, err
	}
	days := (int(target) - int(result.Weekday()) + 7) % 7
	return result.AddDate(0, 0, days), nil
}

// parseWeekday accepts a full or three letter day name in any case
func parseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// SynthesizeAt runs a single synthesis pass over table at the given time
func SynthesizeAt(table *schedule.Table, options fleet.SynthesizerOptions, at time.Time) (*fleet.Synthesis, error) {
	synthesizer := fleet.NewSynthesizer(options)
	synthesizer.SetTable(table)
	return synthesizer.Synthesize(at)
}

// PrintSynthesis writes one line per synthesized vehicle, sorted by eta, with its boarding advice
func PrintSynthesis(w io.Writer, synthesis *fleet.Synthesis) error {
	if _, err := fmt.Fprintf(w, "slot:%s next:%s holiday:%t vehicles:%d duplicates:%d\n", synthesis.CurrentSlot,
		synthesis.NextSlot, synthesis.Holiday, len(synthesis.Vehicles), synthesis.Duplicates); err != nil {
		return err
	}
	vehicles := append([]*fleet.Vehicle(nil), synthesis.Vehicles...)
	fleet.SortByEta(vehicles)
	for _, v := range vehicles {
		recommendation := fleet.Recommend(v)
		if _, err := fmt.Fprintf(w, "%-4s %-32s eta:%v next:%v(%s) crowd:%-6s comfort:%v passengers:%d/%d %s\n",
			v.Route, v.CurrentStop, v.Eta, v.NextEta, v.NextEtaSource, v.CrowdLevel, v.ComfortScore,
			v.PassengerCount, v.Capacity, recommendation.Kind); err != nil {
			return err
		}
	}
	return nil
}

// ExportSynthesis writes the vehicles of synthesis to destinationFile as csv
func ExportSynthesis(log *log.Logger, synthesis *fleet.Synthesis, destinationFile string) error {
	out, err := os.Create(destinationFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	if err = fleet.WriteVehiclesCSV(out, synthesis.Vehicles); err != nil {
		return err
	}
	log.Printf("saved %d vehicles for slot %s to %s", len(synthesis.Vehicles), synthesis.CurrentSlot,
		destinationFile)
	return nil
}
