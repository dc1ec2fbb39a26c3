package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .verity) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	// Check if schema_version table exists to detect database state.
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// schema_version exists but is empty; repair it.
		v = currentSchemaVersion
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	switch v {
	case currentSchemaVersion:
		return nil
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

// freshInstall creates the schema from scratch on an empty database.
func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// SaveInvestigation inserts the record, replacing any previous record with
// the same ID. A missing CreatedAt is stamped with the current UTC time.
func (s *SqlStore) SaveInvestigation(rec *Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = nowUTC()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO investigations(id, kind, verdict, confidence, created_at, payload)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.Verdict, rec.Confidence, rec.CreatedAt, rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert investigation: %w", err)
	}
	return nil
}

func (s *SqlStore) GetInvestigation(id string) (*Record, error) {
	var rec Record
	err := s.db.QueryRow(
		`SELECT id, kind, verdict, confidence, created_at, payload
		 FROM investigations WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Kind, &rec.Verdict, &rec.Confidence, &rec.CreatedAt, &rec.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get investigation: %w", err)
	}
	return &rec, nil
}

func (s *SqlStore) ListInvestigations(limit int) ([]*Record, error) {
	q := `SELECT id, kind, verdict, confidence, created_at, payload
	      FROM investigations ORDER BY created_at DESC, id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(q+" LIMIT ?", limit)
	} else {
		rows, err = s.db.Query(q)
	}
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Verdict, &rec.Confidence, &rec.CreatedAt, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan investigation: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SqlStore) Close() error {
	return s.db.Close()
}
