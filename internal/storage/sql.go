package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      source,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	selectSessionSQL = `
SELECT id,
       start_time,
       source,
       config
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id,
       start_time,
       source,
       config
FROM sessions
ORDER BY start_time, id`

	insertStatsSQL = `
INSERT INTO stats (session_id,
                   timestamp,
                   blocks_acquired,
                   blocks_dropped,
                   read_failures,
                   frames_published,
                   observers,
                   last_processing_ns,
                   peak_frequency)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectLatestStatsSQL = `
SELECT id,
       session_id,
       timestamp,
       blocks_acquired,
       blocks_dropped,
       read_failures,
       frames_published,
       observers,
       last_processing_ns,
       peak_frequency
FROM stats
WHERE session_id = ?
ORDER BY timestamp DESC, id DESC
LIMIT 1`
)

//go:embed schema.sql
var initSchemaSQL string
