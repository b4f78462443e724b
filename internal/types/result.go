// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"fmt"
	"time"
)

// Result describes one exported source table: which table went into which
// file and how many rows were written.
type Result struct {
	TableName       string
	FileName        string
	Format          string
	RecordsAffected int64
	SHA256          string        // hex digest of the entry as written, before archive compression
	Duration        time.Duration // time spent reading and writing the table
}

// String renders the result as "<table> > <file> (<n> rows)".
func (r Result) String() string {
	return fmt.Sprintf("%s > %s (%d rows)", r.TableName, r.FileName, r.RecordsAffected)
}
