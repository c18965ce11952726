package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vegas-server/internal/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id    TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rooms_status_updated_idx ON rooms (status, updated_at);
`

// PersistenceManager saves room records to Postgres so rooms survive a
// restart.
type PersistenceManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPersistenceManager connects to databaseURL and creates the schema.
func NewPersistenceManager(ctx context.Context, databaseURL string, logger *slog.Logger) (*PersistenceManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pm := &PersistenceManager{pool: pool, logger: logger}
	if err := pm.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := pm.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pm, nil
}

func (pm *PersistenceManager) migrate(ctx context.Context) error {
	if _, err := pm.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	pm.logger.Info("Database schema ready")
	return nil
}

func (pm *PersistenceManager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pm.pool.Ping(ctx)
}

func (pm *PersistenceManager) Close() {
	pm.pool.Close()
}

// SaveRoom upserts the record.
func (pm *PersistenceManager) SaveRoom(ctx context.Context, rec RoomRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize room %s: %w", rec.ID, err)
	}

	query := `
		INSERT INTO rooms (room_id, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO UPDATE
		SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	createdAt, updatedAt := rec.CreatedAt, rec.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	if _, err := pm.pool.Exec(ctx, query, rec.ID, string(rec.Status), data, createdAt, updatedAt); err != nil {
		return fmt.Errorf("failed to save room %s: %w", rec.ID, err)
	}
	return nil
}

func (pm *PersistenceManager) LoadRoom(ctx context.Context, roomID string) (RoomRecord, error) {
	var data []byte
	err := pm.pool.QueryRow(ctx, `SELECT data FROM rooms WHERE room_id = $1`, roomID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoomRecord{}, ErrRoomNotFound
	}
	if err != nil {
		return RoomRecord{}, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}

	var rec RoomRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return RoomRecord{}, fmt.Errorf("failed to deserialize room %s: %w", roomID, err)
	}
	return rec, nil
}

// LoadActiveRooms returns every room that has not finished, most recently
// updated first.
func (pm *PersistenceManager) LoadActiveRooms(ctx context.Context) ([]RoomRecord, error) {
	rows, err := pm.pool.Query(ctx, `
		SELECT room_id, data FROM rooms
		WHERE status <> $1
		ORDER BY updated_at DESC
	`, string(protocol.StatusFinished))
	if err != nil {
		return nil, fmt.Errorf("failed to query active rooms: %w", err)
	}
	defer rows.Close()

	var records []RoomRecord
	for rows.Next() {
		var (
			roomID string
			data   []byte
		)
		if err := rows.Scan(&roomID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}

		var rec RoomRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			pm.logger.Warn("Skipping unreadable room", "room", roomID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room rows: %w", err)
	}
	return records, nil
}

func (pm *PersistenceManager) DeleteRoom(ctx context.Context, roomID string) error {
	tag, err := pm.pool.Exec(ctx, `DELETE FROM rooms WHERE room_id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// CleanupFinished deletes finished rooms last updated before olderThan ago.
func (pm *PersistenceManager) CleanupFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := pm.pool.Exec(ctx,
		`DELETE FROM rooms WHERE status = $1 AND updated_at < $2`,
		string(protocol.StatusFinished), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up finished rooms: %w", err)
	}
	return tag.RowsAffected(), nil
}
