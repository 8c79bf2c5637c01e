package schedule

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// scheduleFileParser holds information about a csv schedule file. Errors while extracting values
// are collected and reported with the line number they happened on.
type scheduleFileParser struct {
	Filename       string
	line           int
	csvReader      *csv.Reader
	headers        []string
	currentRecords []string
	errors         []error
}

// makeScheduleFileParser creates new scheduleFileParser from io.Reader, reading the header line
func makeScheduleFileParser(r io.Reader, filename string) (*scheduleFileParser, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to load header in %s: %w", filename, err)
	}
	removeBOMIfPresent(headers)
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	return &scheduleFileParser{
		Filename:       filename,
		line:           1,
		csvReader:      csvReader,
		headers:        headers,
		currentRecords: headers,
	}, nil
}

func removeBOMIfPresent(headers []string) {
	if len(headers) < 1 || len(headers[0]) < 1 {
		return
	}
	runes := []rune(headers[0])
	if runes[0] == '\uFEFF' {
		headers[0] = string(runes[1:])
	}
}

// getString retrieves string, returns empty string if missing
func (p *scheduleFileParser) getString(name string, optional bool) string {
	result, err := findValue(name, p.currentRecords, p.headers, optional)
	if err != nil {
		p.errors = append(p.errors, err)
	}
	if result == nil {
		return ""
	}
	return strings.TrimSpace(*result)
}

// getFloat64 retrieves float64, returns 0 if missing.
func (p *scheduleFileParser) getFloat64(name string, optional bool) float64 {
	result, err := getFloat64(name, p.currentRecords, p.headers, optional)
	if err != nil {
		p.errors = append(p.errors, err)
	}
	if result == nil {
		return 0
	}
	return *result
}

// getError retrieve errors encountered on the current line
func (p *scheduleFileParser) getError() error {
	if len(p.errors) > 0 {
		return fmt.Errorf("in file %v, line %v: %v", p.Filename, p.line, p.errors)
	}
	return nil
}

// addParseError appends error to list of parsing errors encountered in csv file
func (p *scheduleFileParser) addParseError(err error) {
	p.errors = append(p.errors, err)
}

// nextLine moves csvReader one line forward
func (p *scheduleFileParser) nextLine() error {
	var err error
	p.currentRecords, err = p.csvReader.Read()
	p.line += 1
	return err
}

// isBlankLine is true when every column of the current line is empty, as happens with trailing lines
// written by spreadsheet tools
func (p *scheduleFileParser) isBlankLine() bool {
	for _, value := range p.currentRecords {
		if len(strings.TrimSpace(value)) > 0 {
			return false
		}
	}
	return true
}

// find index of elements that matches name string. returns -1 if not found
func indexOf(name string, elements []string) int {
	for i, value := range elements {
		if name == value {
			return i
		}
	}
	return -1
}

// findValue retrieves string value from csv records
// returns nil if record isn't present and optional is true
func findValue(name string, records []string, headers []string, optional bool) (*string, error) {
	index := indexOf(name, headers)
	if index < 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to find header: %s", name)
	}
	if len(records) <= index {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("records are too short to find header at %v named %s", index, name)
	}
	value := records[index]
	if len(strings.TrimSpace(value)) == 0 && !optional {
		return nil, fmt.Errorf("missing required value in column %v", name)
	}
	return &value, nil
}

// getFloat64 retrieves float64 from csv records
// returns nil if record isn't present and optional is true
func getFloat64(name string, records []string, headers []string, optional bool) (*float64, error) {
	value, err := findValue(name, records, headers, optional)
	if err != nil || value == nil {
		return nil, err
	}
	str := strings.TrimSpace(*value)
	if len(str) == 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("missing required value in column %v", name)
	}
	result, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return nil, csvError(name, err)
	}
	return &result, nil
}

// csvError convenience method for formatting a column parse error
func csvError(name string, err error) error {
	return fmt.Errorf("unable to parse column %s, error: %v ", name, err)
}

// buildRow reads a Row from the parser's current line
func buildRow(parser *scheduleFileParser) (Row, error) {
	row := Row{
		Stop:            parser.getString(ColumnStop, false),
		Route:           parser.getString(ColumnRoute, false),
		TimeSlot:        parser.getString(ColumnTime, false),
		PredictedLoad:   parser.getFloat64(ColumnPredictedLoad, false),
		WaitTimeMinutes: parser.getFloat64(ColumnWaitTime, false),
		DayOfWeek:       parser.getString(ColumnDayOfWeek, true),
	}
	return row, parser.getError()
}

// ReadRows reads every Row from a csv resource with columns
// bus_stop, route, time, predicted_bus_load, wait_time_min and an optional day_of_week.
// Reading halts on the first malformed line and the error is returned
func ReadRows(r io.Reader, filename string) ([]Row, error) {
	parser, err := makeScheduleFileParser(r, filename)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			parser.addParseError(err)
			return nil, parser.getError()
		}
		if parser.isBlankLine() {
			continue
		}
		row, err := buildRow(parser)
		if err != nil {
			return nil, err
		}
		if err = validateRow(&row); err != nil {
			parser.addParseError(err)
			return nil, parser.getError()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadTable reads a csv resource into a Table
func ReadTable(r io.Reader, filename string) (*Table, error) {
	rows, err := ReadRows(r, filename)
	if err != nil {
		return nil, err
	}
	return NewTable(rows)
}

// LoadCSVFile loads a Table from a local csv file
func LoadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening schedule file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadTable(f, path)
}
