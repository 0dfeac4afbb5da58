// Package beamlog keeps the sqlite record of executed sweeps and operator
// commands.
package beamlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vk-instruments/spibeam/internal/beam"
)

type DB struct {
	*sql.DB
}

// New opens (and if needed creates) the sweep log at path.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sweeps (
			sweep_id          TEXT PRIMARY KEY,
			azimuth_deg       DOUBLE,
			elevation_deg     DOUBLE,
			transmit          INTEGER,
			total_frames      BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS sweep_lanes (
			sweep_id          TEXT,
			lane              INTEGER,
			frames            BIGINT,
			faults            BIGINT,
			FOREIGN KEY(sweep_id) REFERENCES sweeps(sweep_id)
		);
		CREATE TABLE IF NOT EXISTS commands (
			command_id        TEXT PRIMARY KEY,
			command           TEXT,
			response          TEXT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// Sweep is one logged sweep with its per-lane frame counts.
type Sweep struct {
	ID          string
	AzimuthDeg  float64
	ElevationDeg float64
	Transmit    bool
	TotalFrames int
	LaneFrames  [beam.Lanes]int
	Timestamp   time.Time
}

// RecordSweep logs one executed sweep and returns its id. Fault counts are
// per lane, aligned with the frames array.
func (db *DB) RecordSweep(cmd beam.Command, frames [beam.Lanes][]beam.Frame, faults [beam.Lanes]int) (string, error) {
	id := uuid.NewString()

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	total := 0
	for _, lane := range frames {
		total += len(lane)
	}
	_, err = tx.Exec(`
		INSERT INTO sweeps (sweep_id, azimuth_deg, elevation_deg, transmit, total_frames)
		VALUES (?, ?, ?, ?, ?)`,
		id, cmd.Azimuth.Float(), cmd.Elevation.Float(), cmd.Transmit, total)
	if err != nil {
		return "", fmt.Errorf("failed to insert sweep: %w", err)
	}
	for lane := range frames {
		_, err = tx.Exec(`
			INSERT INTO sweep_lanes (sweep_id, lane, frames, faults)
			VALUES (?, ?, ?, ?)`,
			id, lane, len(frames[lane]), faults[lane])
		if err != nil {
			return "", fmt.Errorf("failed to insert lane %d: %w", lane, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// RecordCommand logs one operator command and its response.
func (db *DB) RecordCommand(command, response string) error {
	_, err := db.Exec(`
		INSERT INTO commands (command_id, command, response)
		VALUES (?, ?, ?)`,
		uuid.NewString(), command, response)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// Sweeps returns the most recent sweeps, newest first.
func (db *DB) Sweeps(limit int) ([]Sweep, error) {
	rows, err := db.Query(`
		SELECT sweep_id, azimuth_deg, elevation_deg, transmit, total_frames, timestamp
		FROM sweeps ORDER BY timestamp DESC, sweep_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sweep
	for rows.Next() {
		var s Sweep
		if err := rows.Scan(&s.ID, &s.AzimuthDeg, &s.ElevationDeg, &s.Transmit, &s.TotalFrames, &s.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		laneRows, err := db.Query(`
			SELECT lane, frames FROM sweep_lanes WHERE sweep_id = ?`, out[i].ID)
		if err != nil {
			return nil, err
		}
		for laneRows.Next() {
			var lane, count int
			if err := laneRows.Scan(&lane, &count); err != nil {
				laneRows.Close()
				return nil, err
			}
			if lane >= 0 && lane < beam.Lanes {
				out[i].LaneFrames[lane] = count
			}
		}
		if err := laneRows.Close(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
