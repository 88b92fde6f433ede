package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rangeops/missiond/pkg/types"
)

const sqliteOpTimeout = 3 * time.Second

// SQLiteStore persists missions in a single sqlite database. The record is
// the JSON-encoded MissionState; the schema stays key-value on purpose so
// the store contract (load-by-key, whole-record overwrite) holds for every
// backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is happiest with a single writer connection.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS missions(
		mission_id TEXT PRIMARY KEY,
		state      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(id types.MissionID) (*types.MissionState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM missions WHERE mission_id = ?`, string(id)).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load mission %s: %w", id, err)
	}
	var state types.MissionState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptedRecord, id)
	}
	return &state, nil
}

func (s *SQLiteStore) Save(state *types.MissionState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal mission record: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO missions(mission_id, state, updated_at) VALUES(?,?,?)
		 ON CONFLICT(mission_id) DO UPDATE SET state=excluded.state, updated_at=excluded.updated_at`,
		string(state.ID), blob, state.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save mission %s: %w", state.ID, err)
	}
	return nil
}

func (s *SQLiteStore) List() ([]types.MissionID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT mission_id FROM missions ORDER BY mission_id`)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	var ids []types.MissionID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan mission id: %w", err)
		}
		ids = append(ids, types.MissionID(id))
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
