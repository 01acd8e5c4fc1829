package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// toConfigData accepts a string, []byte or any JSON-serializable value.
func toConfigData(config any) (sql.NullString, error) {
	switch c := config.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		return sql.NullString{String: c, Valid: true}, nil
	case []byte:
		return sql.NullString{String: string(c), Valid: true}, nil
	default:
		p, err := json.Marshal(c)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("marshaling config: %w", err)
		}
		return sql.NullString{String: string(p), Valid: true}, nil
	}
}

func toStatsData(sessionID int64, t *telemetry.Telemetry) *statsData {
	data := statsData{
		SessionID:       sessionID,
		Timestamp:       t.Timestamp.UTC(),
		BlocksAcquired:  int64(t.BlocksAcquired),
		BlocksDropped:   int64(t.BlocksDropped),
		ReadFailures:    int64(t.ReadFailures),
		FramesPublished: int64(t.FramesPublished),
		Observers:       t.Observers,
		LastProcessing:  int64(t.LastProcessing),
	}
	if t.PeakFrequency != nil {
		data.PeakFrequency = sql.NullFloat64{Float64: *t.PeakFrequency, Valid: true}
	}
	return &data
}

func fromStatsData(id int64, data *statsData) *Stats {
	s := Stats{
		ID:        id,
		SessionID: data.SessionID,
		Telemetry: telemetry.Telemetry{
			Timestamp:       data.Timestamp,
			BlocksAcquired:  uint64(data.BlocksAcquired),
			BlocksDropped:   uint64(data.BlocksDropped),
			ReadFailures:    uint64(data.ReadFailures),
			FramesPublished: uint64(data.FramesPublished),
			Observers:       data.Observers,
			LastProcessing:  time.Duration(data.LastProcessing),
		},
	}
	if data.PeakFrequency.Valid {
		peak := data.PeakFrequency.Float64
		s.PeakFrequency = &peak
	}
	return &s
}
