package schedule

import (
	"fmt"
)

// Table is the loaded-once, read-only collection of schedule Rows indexed by time slot.
// All lookups are exact string matches on the slot key.
type Table struct {
	rows         []Row
	slotIndex    map[string][]int
	stops        []Stop
	routes       []string
	routeStops   map[string][]string
	slotsInOrder []string
}

// NewTable validates rows and builds a Table from them. Row order is preserved and is used to derive
// stop ordering for each route
func NewTable(rows []Row) (*Table, error) {
	t := &Table{
		rows:       make([]Row, 0, len(rows)),
		slotIndex:  make(map[string][]int),
		routeStops: make(map[string][]string),
	}
	seenStops := make(map[string]bool)
	seenRoutes := make(map[string]bool)
	seenRouteStops := make(map[string]map[string]bool)

	for i := range rows {
		row := rows[i]
		if err := validateRow(&row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		index := len(t.rows)
		t.rows = append(t.rows, row)

		if _, present := t.slotIndex[row.TimeSlot]; !present {
			t.slotsInOrder = append(t.slotsInOrder, row.TimeSlot)
		}
		t.slotIndex[row.TimeSlot] = append(t.slotIndex[row.TimeSlot], index)

		if !seenStops[row.Stop] {
			seenStops[row.Stop] = true
			t.stops = append(t.stops, Stop{Id: StopId(row.Stop), Name: row.Stop})
		}
		if !seenRoutes[row.Route] {
			seenRoutes[row.Route] = true
			t.routes = append(t.routes, row.Route)
			seenRouteStops[row.Route] = make(map[string]bool)
		}
		if !seenRouteStops[row.Route][row.Stop] {
			seenRouteStops[row.Route][row.Stop] = true
			t.routeStops[row.Route] = append(t.routeStops[row.Route], row.Stop)
		}
	}
	return t, nil
}

// Len returns the number of rows in the Table
func (t *Table) Len() int {
	return len(t.rows)
}

// SlotRows returns copies of all rows whose time slot equals slot, in table order.
// An unknown slot produces an empty result.
func (t *Table) SlotRows(slot string) []Row {
	indexes := t.slotIndex[slot]
	result := make([]Row, 0, len(indexes))
	for _, i := range indexes {
		result = append(result, t.rows[i])
	}
	return result
}

// HasSlot returns true if any row has the exact time slot
func (t *Table) HasSlot(slot string) bool {
	_, present := t.slotIndex[slot]
	return present
}

// Slots returns every distinct slot key in order of first appearance
func (t *Table) Slots() []string {
	return append([]string(nil), t.slotsInOrder...)
}

// Stops returns every distinct stop in order of first appearance
func (t *Table) Stops() []Stop {
	return append([]Stop(nil), t.stops...)
}

// Routes returns every distinct route in order of first appearance
func (t *Table) Routes() []string {
	return append([]string(nil), t.routes...)
}

// RouteStops returns the stops served by route in order of first appearance.
// This is table order, not a true route sequence.
func (t *Table) RouteStops(route string) []string {
	return append([]string(nil), t.routeStops[route]...)
}

// StopPredictions returns rows for stopName at slot
func (t *Table) StopPredictions(stopName string, slot string) []Row {
	var result []Row
	for _, row := range t.SlotRows(slot) {
		if row.Stop == stopName {
			result = append(result, row)
		}
	}
	return result
}

// RoutePredictions returns rows for route at slot
func (t *Table) RoutePredictions(route string, slot string) []Row {
	var result []Row
	for _, row := range t.SlotRows(slot) {
		if row.Route == route {
			result = append(result, row)
		}
	}
	return result
}

// Stats summarizes the Table
func (t *Table) Stats() Stats {
	return Stats{
		TotalRecords: len(t.rows),
		UniqueStops:  len(t.stops),
		UniqueRoutes: len(t.routes),
		Slots:        len(t.slotsInOrder),
	}
}
