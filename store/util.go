package store

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// sqlxIn expands a "... IN (?)" query against a slice argument into the
// right number of placeholders.
func sqlxIn(query string, args ...interface{}) (string, []interface{}, error) {
	return sqlx.In(query, args...)
}

const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// now is overridable in tests; production code always uses time.Now.
var now = time.Now
