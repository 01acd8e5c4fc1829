package storage

import (
	"database/sql"
	"time"

	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

// Session is one run of the pipeline.
type Session struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"startTime"`
	Source    string    `json:"source"`           // Acquisition source name
	Config    *string   `json:"config,omitempty"` // Acquisition configuration as JSON
}

// Stats is a telemetry snapshot recorded during a session.
type Stats struct {
	ID        int64 `json:"id"`
	SessionID int64 `json:"sessionId"`
	telemetry.Telemetry
}

type statsData struct {
	SessionID       int64
	Timestamp       time.Time
	BlocksAcquired  int64
	BlocksDropped   int64
	ReadFailures    int64
	FramesPublished int64
	Observers       int64
	LastProcessing  int64
	PeakFrequency   sql.NullFloat64
}
