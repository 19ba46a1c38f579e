package history

import "time"

const SchemaVersion = 1

// Run is one row of the runs table.
type Run struct {
	RunID      string
	Module     string
	Timestamp  time.Time
	Status     string
	Stage      string
	ErrorCode  string
	DurationMS int64
	Modules    int
	Classes    int
	Methods    int
	Functions  int
	Enums      int
	Warnings   int
	Opaque     int
	Written    int
	Unchanged  int
}
