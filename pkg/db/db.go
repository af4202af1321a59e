package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docs-sentinel/pkg/models"

	_ "github.com/lib/pq"
)

// DB records threat detections for later review, keyed by the logical file
// identifier (target name + relative path).
type DB struct {
	*sql.DB
}

// NewDB opens and verifies a Postgres connection.
func NewDB(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	return &DB{conn}, nil
}

// RecordFlaggedFile inserts one row per finding of the flagged file.
func (db *DB) RecordFlaggedFile(ctx context.Context, file models.FlaggedFile) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	detectedAt := time.Now().UTC()
	for _, finding := range file.Findings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO threat_detections (file, category, matched_text, detected_at)
	         VALUES ($1, $2, $3, $4)`,
			file.File, finding.Type, finding.Match, detectedAt,
		)
		if err != nil {
			return fmt.Errorf("error inserting detection: %w", err)
		}
	}

	return tx.Commit()
}

// RecentDetections returns detections recorded since the given time, newest
// first.
func (db *DB) RecentDetections(ctx context.Context, since time.Time) ([]models.FlaggedFile, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT file, category, matched_text
	     FROM threat_detections
	     WHERE detected_at >= $1
	     ORDER BY detected_at DESC, file`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying detections: %w", err)
	}
	defer rows.Close()

	byFile := make(map[string]*models.FlaggedFile)
	var order []string
	for rows.Next() {
		var file, category, match string
		if err := rows.Scan(&file, &category, &match); err != nil {
			return nil, fmt.Errorf("error scanning detection row: %w", err)
		}
		entry, ok := byFile[file]
		if !ok {
			entry = &models.FlaggedFile{File: file}
			byFile[file] = entry
			order = append(order, file)
		}
		entry.Findings = append(entry.Findings, models.Finding{Type: category, Match: match})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detection rows: %w", err)
	}

	flagged := make([]models.FlaggedFile, 0, len(order))
	for _, file := range order {
		flagged = append(flagged, *byFile[file])
	}
	return flagged, nil
}
