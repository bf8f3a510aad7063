// Package duckdb keeps a ledger of gallery runs in DuckDB so galleries
// produced over time can be queried together.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for the run ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path ("" for in-memory).
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR PRIMARY KEY,
			started_at TIMESTAMP,
			title VARCHAR,
			framework VARCHAR,
			build VARCHAR,
			session_id VARCHAR,
			browser_url VARCHAR,
			output_dir VARCHAR,
			regions_file VARCHAR,
			attempted BIGINT,
			succeeded BIGINT,
			failed BIGINT,
			warnings BIGINT,
			elapsed_ms BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id VARCHAR,
			row_num BIGINT,
			region_id VARCHAR,
			chrom VARCHAR,
			view_start BIGINT,
			view_end BIGINT,
			original_start BIGINT,
			original_end BIGINT,
			title VARCHAR,
			image_url VARCHAR,
			image_width BIGINT,
			image_height BIGINT,
			pdf_url VARCHAR,
			external_url VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			run_id VARCHAR,
			row_num BIGINT,
			region_id VARCHAR,
			kind VARCHAR,
			message VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
