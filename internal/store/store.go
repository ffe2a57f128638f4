// Package store persists provenance metadata for indexed vectors.
//
// One row per vector, addressed by the same sequential id space as the
// vector index. Chunk text is stored alongside the provenance so query-time
// snippet display never re-reads or re-chunks the corpus.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists metadata records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and
// initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// InsertRecords stores the given records with their explicit ids in one
// transaction. Ids must be unique; they mirror vector index positions.
func (s *SQLiteStore) InsertRecords(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO records (id, source_path, chunk_index, kind, text, char_start, char_end, doc_ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.ID, r.SourcePath, r.ChunkIndex, r.Kind, r.Text, r.CharStart, r.CharEnd, r.DocTS); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the record with the given id.
func (s *SQLiteStore) Get(id int64) (*Record, error) {
	var r Record
	err := s.db.QueryRow(
		"SELECT id, source_path, chunk_index, kind, text, char_start, char_end, doc_ts FROM records WHERE id = ?", id,
	).Scan(&r.ID, &r.SourcePath, &r.ChunkIndex, &r.Kind, &r.Text, &r.CharStart, &r.CharEnd, &r.DocTS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetMany returns the records for the given ids, in the order requested.
func (s *SQLiteStore) GetMany(ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Query(
		"SELECT id, source_path, chunk_index, kind, text, char_start, char_end, doc_ts FROM records WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]Record, len(ids))
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SourcePath, &r.ChunkIndex, &r.Kind, &r.Text, &r.CharStart, &r.CharEnd, &r.DocTS); err != nil {
			return nil, err
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("record %d not found", id)
		}
		out = append(out, r)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}

// ListSources returns a per-document rollup, ordered by path.
func (s *SQLiteStore) ListSources() ([]SourceSummary, error) {
	rows, err := s.db.Query(
		"SELECT source_path, kind, COUNT(*) FROM records GROUP BY source_path, kind ORDER BY source_path",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceSummary
	for rows.Next() {
		var ss SourceSummary
		if err := rows.Scan(&ss.SourcePath, &ss.Kind, &ss.Chunks); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// GetMeta returns a metadata value by key, or "" if not set.
func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMeta sets a metadata key-value pair.
func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// DeleteAll removes every record, leaving meta intact.
func (s *SQLiteStore) DeleteAll() error {
	_, err := s.db.Exec("DELETE FROM records")
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
