package store

import (
	"database/sql"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so that store methods can
// participate in a caller-owned transaction. Check-then-mutate sequences that
// must be atomic run their conditional writes through a transaction and treat
// a zero affected-row count as a lost race.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// dateLayout is the storage format for day-granular columns
// (next_run_date, challenge windows, check-in dates).
const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
