// internal/database/sqlite.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/openworkouts/openworkouts-go/internal/workout"
)

// ErrDuplicateWorkout is returned when inserting a workout whose
// (owner, hash) pair is already present in the catalog.
var ErrDuplicateWorkout = errors.New("duplicate workout")

const timeLayout = "2006-01-02 15:04:05"

type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	d := &DB{db: db}

	if err := d.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		hash TEXT NOT NULL,
		sport TEXT,
		title TEXT,
		start_time DATETIME NOT NULL,
		duration INTEGER,
		distance REAL,
		tracking_file TEXT,
		tracking_filetype TEXT,
		fit_file TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_workouts_owner_hash ON workouts(owner_id, hash);
	CREATE INDEX IF NOT EXISTS idx_workouts_owner_start ON workouts(owner_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_workouts_sport ON workouts(sport);
	`

	_, err := d.db.Exec(schema)
	return err
}

// WorkoutRecord is the flattened catalog row for an ingested workout.
type WorkoutRecord struct {
	ID               int64
	OwnerID          string
	Hash             string
	Sport            string
	Title            string
	Start            time.Time
	Duration         int64 // seconds
	Distance         float64
	TrackingFile     string
	TrackingFiletype string
	FitFile          string
	CreatedAt        time.Time
}

// NewRecord flattens an ingested workout into its catalog row.
func NewRecord(ownerID string, w *workout.Workout) *WorkoutRecord {
	rec := &WorkoutRecord{
		OwnerID:          ownerID,
		Hash:             w.Hash(ownerID),
		Sport:            w.Sport,
		Title:            w.Title,
		Start:            w.Start,
		TrackingFiletype: string(w.TrackingFiletype),
	}
	if w.Duration != nil {
		rec.Duration = int64(w.Duration.Seconds())
	}
	if w.Distance != nil {
		rec.Distance = w.Distance.InexactFloat64()
	}
	if w.TrackingFile != nil {
		rec.TrackingFile = w.TrackingFile.Path()
	}
	if w.FitFile != nil {
		rec.FitFile = w.FitFile.Path()
	}
	return rec
}

func (d *DB) InsertWorkout(rec *WorkoutRecord) error {
	query := `
	INSERT INTO workouts (
		owner_id, hash, sport, title, start_time,
		duration, distance, tracking_file, tracking_filetype, fit_file
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.Exec(query,
		rec.OwnerID, rec.Hash, rec.Sport, rec.Title,
		rec.Start.UTC().Format(timeLayout),
		rec.Duration, rec.Distance,
		rec.TrackingFile, rec.TrackingFiletype, rec.FitFile,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateWorkout
		}
		return err
	}

	rec.ID, err = res.LastInsertId()
	return err
}

func (d *DB) HasWorkout(ownerID, hash string) (bool, error) {
	query := `SELECT COUNT(*) FROM workouts WHERE owner_id = ? AND hash = ?`
	var count int
	err := d.db.QueryRow(query, ownerID, hash).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *DB) GetWorkout(id int64) (*WorkoutRecord, error) {
	query := `
	SELECT id, owner_id, hash, sport, title, start_time,
	       duration, distance, tracking_file, tracking_filetype, fit_file, created_at
	FROM workouts
	WHERE id = ?`

	rec, err := scanWorkout(d.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workout %d not found", id)
		}
		return nil, err
	}
	return rec, nil
}

func (d *DB) ListWorkouts(ownerID string, limit, offset int) ([]*WorkoutRecord, error) {
	query := `
	SELECT id, owner_id, hash, sport, title, start_time,
	       duration, distance, tracking_file, tracking_filetype, fit_file, created_at
	FROM workouts
	WHERE owner_id = ?
	ORDER BY start_time DESC
	LIMIT ? OFFSET ?`

	rows, err := d.db.Query(query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*WorkoutRecord
	for rows.Next() {
		rec, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (d *DB) CountWorkouts(ownerID string) (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM workouts WHERE owner_id = ?`, ownerID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkout(row rowScanner) (*WorkoutRecord, error) {
	var rec WorkoutRecord
	var startTime, createdAt string

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Hash, &rec.Sport, &rec.Title,
		&startTime, &rec.Duration, &rec.Distance,
		&rec.TrackingFile, &rec.TrackingFiletype, &rec.FitFile, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.Start, err = time.Parse(timeLayout, startTime); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}

	return &rec, nil
}
