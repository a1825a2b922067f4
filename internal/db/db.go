package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// DB wraps the sqlite handle that stores per-cycle presence counts and
// device sighting diagnostics.
type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS presence_counts (
			run_id            TEXT,
			label             TEXT,
			grouper           TEXT,
			device_count      BIGINT,
			people_count      BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS device_sightings (
			run_id            TEXT,
			address           TEXT,
			vendor            TEXT,
			raw_rssi          BIGINT,
			smoothed_rssi     DOUBLE,
			distance_m        DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// NewRunID mints the identifier under which a single process lifetime's
// counts and sightings are recorded.
func NewRunID() string {
	return uuid.NewString()
}

// PresenceCount is one completed cycle's estimate.
type PresenceCount struct {
	RunID       string    `json:"run_id"`
	Label       string    `json:"label"`
	Grouper     string    `json:"grouper"`
	DeviceCount int       `json:"device_count"`
	PeopleCount int       `json:"people_count"`
	Timestamp   time.Time `json:"timestamp"`
}

func (c *PresenceCount) String() string {
	return fmt.Sprintf("Label: %s, Grouper: %s, Devices: %d, People: %d", c.Label, c.Grouper, c.DeviceCount, c.PeopleCount)
}

// RecordCount inserts one presence count row.
func (db *DB) RecordCount(runID, label, grouper string, deviceCount, peopleCount int) error {
	_, err := db.Exec(
		`INSERT INTO presence_counts (run_id, label, grouper, device_count, people_count) VALUES (?, ?, ?, ?, ?)`,
		runID, label, grouper, deviceCount, peopleCount,
	)
	return err
}

// DeviceSighting is one retained device diagnostic from a cycle.
type DeviceSighting struct {
	RunID        string  `json:"run_id"`
	Address      string  `json:"address"`
	Vendor       string  `json:"vendor,omitempty"`
	RawRSSI      int     `json:"raw_rssi"`
	SmoothedRSSI float64 `json:"smoothed_rssi"`
	// DistanceMetres is nil when the cycle produced no usable estimate
	// for the device.
	DistanceMetres *float64 `json:"distance_m,omitempty"`
}

// RecordSighting inserts one device sighting row.
func (db *DB) RecordSighting(s DeviceSighting) error {
	var distance any
	if s.DistanceMetres != nil {
		distance = *s.DistanceMetres
	}
	_, err := db.Exec(
		`INSERT INTO device_sightings (run_id, address, vendor, raw_rssi, smoothed_rssi, distance_m) VALUES (?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Address, s.Vendor, s.RawRSSI, s.SmoothedRSSI, distance,
	)
	return err
}

// Counts returns the most recent presence counts, newest first.
func (db *DB) Counts(limit int) ([]PresenceCount, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT run_id, label, grouper, device_count, people_count, timestamp
		 FROM presence_counts ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []PresenceCount
	for rows.Next() {
		var c PresenceCount
		if err := rows.Scan(&c.RunID, &c.Label, &c.Grouper, &c.DeviceCount, &c.PeopleCount, &c.Timestamp); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// Sightings returns the most recent device sightings, newest first.
func (db *DB) Sightings(limit int) ([]DeviceSighting, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(
		`SELECT run_id, address, vendor, raw_rssi, smoothed_rssi, distance_m
		 FROM device_sightings ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sightings []DeviceSighting
	for rows.Next() {
		var s DeviceSighting
		var distance sql.NullFloat64
		if err := rows.Scan(&s.RunID, &s.Address, &s.Vendor, &s.RawRSSI, &s.SmoothedRSSI, &distance); err != nil {
			return nil, err
		}
		if distance.Valid {
			s.DistanceMetres = &distance.Float64
		}
		sightings = append(sightings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sightings, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://presence.db", db.DB, &tailsql.DBOptions{
		Label: "Presence DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()
		defer os.Remove(backupPath)

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			log.Printf("failed to stream backup: %v", err)
		}
	}))
}
