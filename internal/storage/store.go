package storage

import (
	"context"

	"github.com/roman-kulish/spectrum-scope/internal/telemetry"
)

// Store records pipeline sessions and periodic telemetry snapshots. Spectra
// themselves are never stored.
type Store interface {
	// CreateSession starts a new session and returns its identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - source: Name of the acquisition source (e.g., "synth", "arecord")
	//   - config: Optional acquisition configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, source string, config any) (sessionID int64, err error)

	// Session retrieves a session by its ID.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreStats saves a telemetry snapshot for a session.
	StoreStats(ctx context.Context, sessionID int64, t *telemetry.Telemetry) (statsID int64, err error)

	// LatestStats returns the most recent snapshot of a session, or
	// ErrNotFound when none was recorded.
	LatestStats(ctx context.Context, sessionID int64) (*Stats, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
