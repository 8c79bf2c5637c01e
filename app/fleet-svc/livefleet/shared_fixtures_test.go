package livefleet

import (
	"errors"
	logger "log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
)

type testLogWriter struct {
	logLines []string
	log      *logger.Logger
}

func makeTestLogWriter() *testLogWriter {
	logWriter := testLogWriter{
		logLines: make([]string, 0),
	}
	log := logger.New(&logWriter, "TEST_FLEET_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	logWriter.log = log
	return &logWriter
}

func (t *testLogWriter) Write(p []byte) (n int, err error) {
	t.logLines = append(t.logLines, string(p))
	return len(p), nil
}

// contains returns true if any log line contains s
func (t *testLogWriter) contains(s string) bool {
	for _, line := range t.logLines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// fakePublicationDestination records published events instead of sending them
type fakePublicationDestination struct {
	mu     sync.Mutex
	events []fleet.CrowdOverrideEvent
	err    error
}

func (f *fakePublicationDestination) Publish(event *fleet.CrowdOverrideEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *event)
	return nil
}

// published returns a copy of the recorded events
func (f *fakePublicationDestination) published() []fleet.CrowdOverrideEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]fleet.CrowdOverrideEvent, len(f.events))
	copy(result, f.events)
	return result
}

var errPublish = errors.New("nats unavailable")

// at returns a time on Tuesday 2025-10-14 in UTC
func at(hour int, minute int) time.Time {
	return time.Date(2025, 10, 14, hour, minute, 0, 0, time.UTC)
}

var (
	ccOhioUnion = fleet.MakeEntityKey("CC", "Ohio Union (SB)")
	ccMackHall  = fleet.MakeEntityKey("CC", "Mack Hall (NB)")
	beArpsHall  = fleet.MakeEntityKey("BE", "Arps Hall (NB)")
	beOhioUnion = fleet.MakeEntityKey("BE", "Ohio Union (SB)")
)

func testScheduleRows() []schedule.Row {
	return []schedule.Row{
		{Stop: "Ohio Union (SB)", Route: "CC", TimeSlot: "10:30", PredictedLoad: 0.85, WaitTimeMinutes: 4},
		{Stop: "Mack Hall (NB)", Route: "CC", TimeSlot: "10:30", PredictedLoad: 0.2, WaitTimeMinutes: 6},
		{Stop: "Arps Hall (NB)", Route: "BE", TimeSlot: "10:30", PredictedLoad: 0.6, WaitTimeMinutes: 2},
		{Stop: "Ohio Union (SB)", Route: "BE", TimeSlot: "10:30", PredictedLoad: 0.3, WaitTimeMinutes: 9},
		{Stop: "Ohio Union (SB)", Route: "CC", TimeSlot: "10:40", PredictedLoad: 0.4, WaitTimeMinutes: 5},
		{Stop: "Arps Hall (NB)", Route: "BE", TimeSlot: "10:40", PredictedLoad: 0.7, WaitTimeMinutes: 3},
		{Stop: "Ohio Union (SB)", Route: "CC", TimeSlot: "10:50", PredictedLoad: 0.1, WaitTimeMinutes: 1},
		{Stop: "Arps Hall (NB)", Route: "BE", TimeSlot: "11:00", PredictedLoad: 0.5, WaitTimeMinutes: 7},
		{Stop: "Ohio Union (SB)", Route: "CC", TimeSlot: "11:10", PredictedLoad: 0.9, WaitTimeMinutes: 2},
	}
}

func testScheduleTable(t *testing.T) *schedule.Table {
	table, err := schedule.NewTable(testScheduleRows())
	if err != nil {
		t.Fatalf("unable to build schedule table: %v", err)
	}
	return table
}

// makeTestLiveFleet builds a liveFleet with a loaded table, a fake publisher and a clock fixed at now
func makeTestLiveFleet(t *testing.T, policy OverridePolicy, now time.Time) (*liveFleet, *testLogWriter,
	*fakePublicationDestination) {
	logWriter := makeTestLogWriter()
	publisher := &fakePublicationDestination{}
	synthesizer := fleet.NewSynthesizer(fleet.SynthesizerOptions{})
	synthesizer.SetTable(testScheduleTable(t))
	f := makeLiveFleet(logWriter.log, synthesizer, policy, publisher, time.UTC)
	f.clock = func() time.Time {
		return now
	}
	return f, logWriter, publisher
}

// makeUnloadedLiveFleet builds a liveFleet whose schedule table was never loaded
func makeUnloadedLiveFleet() (*liveFleet, *testLogWriter) {
	logWriter := makeTestLogWriter()
	synthesizer := fleet.NewSynthesizer(fleet.SynthesizerOptions{})
	f := makeLiveFleet(logWriter.log, synthesizer, OverrideDiscard, &fakePublicationDestination{}, time.UTC)
	return f, logWriter
}

func mustRefresh(t *testing.T, f *liveFleet, now time.Time) {
	if _, err := f.refresh(now); err != nil {
		t.Fatalf("refresh(%v) failed: %v", now, err)
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
