package schedule

import (
	"reflect"
	"strings"
	"testing"

	"github.com/matryer/is"
)

const scheduleHeader = "bus_stop,route,time,predicted_bus_load,wait_time_min"

func TestScheduleFileParser_getString(t *testing.T) {
	headers := "one,two"
	tests := []struct {
		name         string
		askForColumn string
		optional     bool
		line         string
		want         string
		expectError  bool
	}{
		{
			name:         "missing",
			askForColumn: "three",
			optional:     false,
			line:         "first,second",
			want:         "",
			expectError:  true,
		},
		{
			name:         "missing optional",
			askForColumn: "three",
			optional:     true,
			line:         "first,second",
			want:         "",
			expectError:  false,
		},
		{
			name:         "first",
			askForColumn: "one",
			optional:     false,
			line:         "first,second",
			want:         "first",
			expectError:  false,
		},
		{
			name:         "empty",
			askForColumn: "one",
			optional:     false,
			line:         ",second",
			want:         "",
			expectError:  true,
		},
		{
			name:         "empty optional",
			askForColumn: "one",
			optional:     true,
			line:         ",second",
			want:         "",
			expectError:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, _ := makeScheduleFileParser(strings.NewReader(headers+"\n"+tt.line), tt.name)
			_ = parser.nextLine()
			got := parser.getString(tt.askForColumn, tt.optional)
			if tt.expectError {
				if parser.getError() == nil {
					t.Errorf("Expected error after asking for %v ", tt.askForColumn)
				}
			} else {
				if parser.getError() != nil {
					t.Errorf("Received error after asking for %v ", tt.askForColumn)
				}
			}
			if got != tt.want {
				t.Errorf("getString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduleFileParser_getFloat64(t *testing.T) {
	headers := "one,two"
	tests := []struct {
		name        string
		line        string
		want        float64
		expectError bool
	}{
		{name: "value", line: "0.85,x", want: 0.85},
		{name: "integer", line: "4,x", want: 4},
		{name: "not a number", line: "abc,x", want: 0, expectError: true},
		{name: "empty", line: ",x", want: 0, expectError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			parser, err := makeScheduleFileParser(strings.NewReader(headers+"\n"+tt.line), tt.name)
			is.NoErr(err)
			is.NoErr(parser.nextLine())
			got := parser.getFloat64("one", false)
			is.Equal(got, tt.want)
			is.Equal(parser.getError() != nil, tt.expectError)
		})
	}
}

func TestReadRows(t *testing.T) {
	tests := []struct {
		name       string
		csvContent string
		want       []Row
		wantErr    bool
	}{
		{
			name: "rows parsed",
			csvContent: scheduleHeader +
				"\nOhio Union (SB),CC,10:30,0.85,4" +
				"\nMack Hall (NB),CC,10:30,0.2,7.5",
			want: []Row{
				{Stop: "Ohio Union (SB)", Route: "CC", TimeSlot: "10:30", PredictedLoad: 0.85, WaitTimeMinutes: 4},
				{Stop: "Mack Hall (NB)", Route: "CC", TimeSlot: "10:30", PredictedLoad: 0.2, WaitTimeMinutes: 7.5},
			},
		},
		{
			name: "byte order mark and day of week",
			csvContent: "\uFEFF" + scheduleHeader + ",day_of_week" +
				"\nArps Hall (NB),BE,07:00,0.5,2,Monday",
			want: []Row{
				{Stop: "Arps Hall (NB)", Route: "BE", TimeSlot: "07:00", PredictedLoad: 0.5, WaitTimeMinutes: 2,
					DayOfWeek: "Monday"},
			},
		},
		{
			name: "blank trailing lines ignored",
			csvContent: scheduleHeader +
				"\nArps Hall (NB),BE,07:00,0.5,2" +
				"\n,,,,",
			want: []Row{
				{Stop: "Arps Hall (NB)", Route: "BE", TimeSlot: "07:00", PredictedLoad: 0.5, WaitTimeMinutes: 2},
			},
		},
		{
			name:       "missing column",
			csvContent: "bus_stop,route,time,predicted_bus_load\nArps Hall (NB),BE,07:00,0.5",
			wantErr:    true,
		},
		{
			name:       "load out of range",
			csvContent: scheduleHeader + "\nArps Hall (NB),BE,07:00,1.5,2",
			wantErr:    true,
		},
		{
			name:       "negative wait",
			csvContent: scheduleHeader + "\nArps Hall (NB),BE,07:00,0.5,-1",
			wantErr:    true,
		},
		{
			name:       "time with seconds",
			csvContent: scheduleHeader + "\nArps Hall (NB),BE,07:00:00,0.5,1",
			wantErr:    true,
		},
		{
			name:       "single digit hour",
			csvContent: scheduleHeader + "\nArps Hall (NB),BE,7:00,0.5,1",
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadRows(strings.NewReader(tt.csvContent), "schedule.csv")
			if tt.wantErr {
				if err == nil {
					t.Errorf("%v: ReadRows() produced no error, but we want one", tt.name)
				}
				return
			} else if err != nil {
				t.Errorf("%v: ReadRows() error = %v", tt.name, err)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadRows() got = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadRows_errorIncludesLine(t *testing.T) {
	is := is.New(t)
	content := scheduleHeader +
		"\nArps Hall (NB),BE,07:00,0.5,2" +
		"\nArps Hall (NB),BE,07:10,x,2"
	_, err := ReadRows(strings.NewReader(content), "schedule.csv")
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "line 3"))
	is.True(strings.Contains(err.Error(), "schedule.csv"))
}
