package schedule

import (
	"fmt"

	"github.com/OpenTransitTools/crowdcast/foundation/database"
	"github.com/jmoiron/sqlx"
)

const batchedRowCount = 250

const createTableStatement = "create table if not exists schedule_prediction ( " +
	"line integer primary key, " +
	"bus_stop text not null, " +
	"route text not null, " +
	"time char(5) not null, " +
	"predicted_bus_load double precision not null, " +
	"wait_time_min double precision not null, " +
	"day_of_week text)"

// EnsureTable creates the schedule_prediction table if it does not exist
func EnsureTable(db *sqlx.DB) error {
	_, err := db.Exec(createTableStatement)
	return err
}

// recordedRow is a Row as stored in the schedule_prediction table. Line keeps the source order so
// route stop ordering survives a round trip through the database
type recordedRow struct {
	Line int `db:"line"`
	Row
}

// RecordRows replaces the contents of the schedule_prediction table with rows inside a single transaction.
// Inserts are batched
func RecordRows(db *sqlx.DB, rows []Row) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("starting schedule transaction: %w", err)
	}
	if err = recordRows(tx, rows); err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			return fmt.Errorf("%v, rollback failed: %w", err, rollbackErr)
		}
		return err
	}
	return tx.Commit()
}

func recordRows(tx *sqlx.Tx, rows []Row) error {
	if _, err := tx.Exec("delete from schedule_prediction"); err != nil {
		return fmt.Errorf("clearing schedule_prediction: %w", err)
	}
	statementString := "insert into schedule_prediction ( " +
		"line, " +
		"bus_stop, " +
		"route, " +
		"time, " +
		"predicted_bus_load, " +
		"wait_time_min, " +
		"day_of_week) " +
		"values (" +
		":line, " +
		":bus_stop, " +
		":route, " +
		":time, " +
		":predicted_bus_load, " +
		":wait_time_min, " +
		":day_of_week)"
	statementString = tx.Rebind(statementString)

	batch := make([]recordedRow, 0, batchedRowCount)
	for i, row := range rows {
		batch = append(batch, recordedRow{Line: i + 1, Row: row})
		if len(batch) == batchedRowCount {
			if _, err := tx.NamedExec(statementString, batch); err != nil {
				return fmt.Errorf("inserting schedule rows ending at line %d: %w", i+1, err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := tx.NamedExec(statementString, batch); err != nil {
			return fmt.Errorf("inserting final %d schedule rows: %w", len(batch), err)
		}
	}
	return nil
}

// LoadRows retrieves every Row stored in schedule_prediction in source order
func LoadRows(db *sqlx.DB) ([]Row, error) {
	var recorded []recordedRow
	query := "select line, bus_stop, route, time, predicted_bus_load, wait_time_min, " +
		"coalesce(day_of_week, '') as day_of_week from schedule_prediction order by line"
	if err := db.Select(&recorded, query); err != nil {
		return nil, fmt.Errorf("selecting schedule_prediction rows: %w", err)
	}
	rows := make([]Row, 0, len(recorded))
	for _, r := range recorded {
		rows = append(rows, r.Row)
	}
	return rows, nil
}

// LoadTable builds a Table from the schedule_prediction table
func LoadTable(db *sqlx.DB) (*Table, error) {
	rows, err := LoadRows(db)
	if err != nil {
		return nil, err
	}
	return NewTable(rows)
}

// CountRows returns the number of rows currently in schedule_prediction
func CountRows(db *sqlx.DB) (int, error) {
	var count int
	err := db.Get(&count, "select count(*) from schedule_prediction")
	return count, err
}

// SlotRowCounts returns the number of stored rows in each of slots. Slots without rows are reported as zero
func SlotRowCounts(db *sqlx.DB, slots []string) (map[string]int, error) {
	results := make(map[string]int, len(slots))
	if len(slots) == 0 {
		return results, nil
	}
	for _, slot := range slots {
		results[slot] = 0
	}
	statementString := "select time, count(*) as row_count from schedule_prediction where time in (:slots) " +
		"group by time"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"slots": slots,
	})
	if err != nil {
		return nil, fmt.Errorf("counting rows in slots: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var slot string
		var count int
		if err = rows.Scan(&slot, &count); err != nil {
			return nil, err
		}
		results[slot] = count
	}
	return results, rows.Err()
}
