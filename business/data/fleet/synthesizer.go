package fleet

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
)

// Synthesis is the result of one synthesis pass: the full vehicle set for an instant
type Synthesis struct {
	At          time.Time
	CurrentSlot string
	NextSlot    string
	Holiday     bool
	Vehicles    []*Vehicle
	//Duplicates counts rows dropped because their route and stop already produced a vehicle in the slot
	Duplicates int
}

// SynthesizerOptions configures a Synthesizer
type SynthesizerOptions struct {
	SlotPolicy SlotPolicy
	//MatchWeekday restricts rows carrying a day_of_week to the weekday of the synthesis instant
	MatchWeekday bool
	Locations    *StopLocations
	Calendar     *ServiceCalendar
}

// Synthesizer turns a schedule.Table into Vehicles for a wall clock instant.
// It holds no state other than the table, so passes with the same table and instant are identical.
type Synthesizer struct {
	table        atomic.Pointer[schedule.Table]
	slotPolicy   SlotPolicy
	matchWeekday bool
	locations    *StopLocations
	calendar     *ServiceCalendar
}

// NewSynthesizer builds a Synthesizer without a table. Synthesize fails with ErrNotReady until SetTable is called
func NewSynthesizer(options SynthesizerOptions) *Synthesizer {
	policy := options.SlotPolicy
	if policy == "" {
		policy = SlotExact
	}
	locations := options.Locations
	if locations == nil {
		locations = DefaultStopLocations()
	}
	return &Synthesizer{
		slotPolicy:   policy,
		matchWeekday: options.MatchWeekday,
		locations:    locations,
		calendar:     options.Calendar,
	}
}

// SetTable installs the schedule table. The table is loaded once, later calls are ignored and return false
func (s *Synthesizer) SetTable(table *schedule.Table) bool {
	if table == nil {
		return false
	}
	return s.table.CompareAndSwap(nil, table)
}

// Ready returns true once a table has been installed
func (s *Synthesizer) Ready() bool {
	return s.table.Load() != nil
}

// Table returns the installed table or ErrNotReady
func (s *Synthesizer) Table() (*schedule.Table, error) {
	table := s.table.Load()
	if table == nil {
		return nil, ErrNotReady
	}
	return table, nil
}

// Locations returns the stop location table used for location hints
func (s *Synthesizer) Locations() *StopLocations {
	return s.locations
}

// Synthesize produces the full vehicle set for now.
// Slots missing from the table produce an empty set, not an error.
func (s *Synthesizer) Synthesize(now time.Time) (*Synthesis, error) {
	table, err := s.Table()
	if err != nil {
		return nil, err
	}
	currentSlot, nextSlot := s.slotPolicy.Resolve(now)
	result := &Synthesis{
		At:          now,
		CurrentSlot: currentSlot,
		NextSlot:    nextSlot,
		Holiday:     s.calendar.IsHoliday(now),
		Vehicles:    make([]*Vehicle, 0),
	}

	current := s.filterWeekday(table.SlotRows(currentSlot), now)
	lookahead := s.filterWeekday(table.SlotRows(nextSlot), now)

	var routeOrder []string
	byRoute := make(map[string][]schedule.Row)
	for _, row := range current {
		if _, present := byRoute[row.Route]; !present {
			routeOrder = append(routeOrder, row.Route)
		}
		byRoute[row.Route] = append(byRoute[row.Route], row)
	}

	nextByKey := make(map[EntityKey]*schedule.Row)
	for i := range lookahead {
		key := MakeEntityKey(lookahead[i].Route, lookahead[i].Stop)
		if _, present := nextByKey[key]; !present {
			nextByKey[key] = &lookahead[i]
		}
	}

	seen := make(map[EntityKey]bool)
	for _, route := range routeOrder {
		routeStops := table.RouteStops(route)
		for _, row := range byRoute[route] {
			key := MakeEntityKey(row.Route, row.Stop)
			if seen[key] {
				result.Duplicates++
				continue
			}
			seen[key] = true
			vehicle := DeriveVehicle(row, nextByKey[key], routeStops, s.locations.Lookup(row.Stop))
			result.Vehicles = append(result.Vehicles, vehicle)
		}
	}
	return result, nil
}

func (s *Synthesizer) filterWeekday(rows []schedule.Row, now time.Time) []schedule.Row {
	if !s.matchWeekday {
		return rows
	}
	result := make([]schedule.Row, 0, len(rows))
	for _, row := range rows {
		if matchesWeekday(row.DayOfWeek, now.Weekday()) {
			result = append(result, row)
		}
	}
	return result
}

// matchesWeekday accepts the full or three letter weekday name in any case. Rows without a day match every day
func matchesWeekday(dayOfWeek string, weekday time.Weekday) bool {
	day := strings.ToLower(strings.TrimSpace(dayOfWeek))
	if day == "" {
		return true
	}
	name := strings.ToLower(weekday.String())
	return day == name || day == name[:3]
}
