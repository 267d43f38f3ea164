package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nurbekov/courtside/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository persists session snapshots. The state column is the whole
// RoomState as jsonb; every write is a full overwrite, there is no partial
// patch operation.
type RoomRepository interface {
	// UpsertActive creates the active room for a party or, if one already
	// exists, overwrites its state. Atomic thanks to the partial unique
	// index on (party_id) WHERE status = 'active', so two hosts racing on
	// session start converge on a single row.
	UpsertActive(ctx context.Context, room *models.Room) error
	GetActiveByParty(ctx context.Context, partyID int) (*models.Room, error)
	// GetLatestByParty returns the most recently updated room of any
	// status, used for rankings after a session finished.
	GetLatestByParty(ctx context.Context, partyID int) (*models.Room, error)
	UpdateState(ctx context.Context, roomID int, state models.RoomState) error
	SetStatus(ctx context.Context, roomID int, status models.RoomStatus) error
	ListActiveUpdatedBefore(ctx context.Context, cutoff time.Time) ([]models.Room, error)
}

type postgresRoomRepository struct {
	db *sql.DB
}

func NewPostgresRoomRepository(db *sql.DB) RoomRepository {
	return &postgresRoomRepository{db: db}
}

func (r *postgresRoomRepository) UpsertActive(ctx context.Context, room *models.Room) error {
	stateJSON, err := json.Marshal(room.State)
	if err != nil {
		return fmt.Errorf("failed to marshal room state: %w", err)
	}

	query := `
		INSERT INTO rooms (party_id, status, state, created_at, updated_at)
		VALUES ($1, 'active', $2, NOW(), NOW())
		ON CONFLICT (party_id) WHERE status = 'active'
		DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
		RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query, room.PartyID, stateJSON).Scan(
		&room.ID,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return err
	}
	room.Status = models.RoomStatusActive
	return nil
}

func (r *postgresRoomRepository) GetActiveByParty(ctx context.Context, partyID int) (*models.Room, error) {
	query := `
		SELECT id, party_id, status, state, created_at, updated_at
		FROM rooms
		WHERE party_id = $1 AND status = 'active'`
	return r.scanRoom(r.db.QueryRowContext(ctx, query, partyID))
}

func (r *postgresRoomRepository) GetLatestByParty(ctx context.Context, partyID int) (*models.Room, error) {
	query := `
		SELECT id, party_id, status, state, created_at, updated_at
		FROM rooms
		WHERE party_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`
	return r.scanRoom(r.db.QueryRowContext(ctx, query, partyID))
}

func (r *postgresRoomRepository) scanRoom(row *sql.Row) (*models.Room, error) {
	room := &models.Room{}
	var stateJSON []byte
	err := row.Scan(
		&room.ID,
		&room.PartyID,
		&room.Status,
		&stateJSON,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(stateJSON, &room.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state of room %d: %w", room.ID, err)
	}
	return room, nil
}

func (r *postgresRoomRepository) UpdateState(ctx context.Context, roomID int, state models.RoomState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal room state: %w", err)
	}

	query := `UPDATE rooms SET state = $1, updated_at = NOW() WHERE id = $2 AND status = 'active'`
	result, err := r.db.ExecContext(ctx, query, stateJSON, roomID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoomNotFound)
}

func (r *postgresRoomRepository) SetStatus(ctx context.Context, roomID int, status models.RoomStatus) error {
	query := `UPDATE rooms SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, roomID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoomNotFound)
}

func (r *postgresRoomRepository) ListActiveUpdatedBefore(ctx context.Context, cutoff time.Time) ([]models.Room, error) {
	query := `
		SELECT id, party_id, status, state, created_at, updated_at
		FROM rooms
		WHERE status = 'active' AND updated_at < $1
		ORDER BY updated_at ASC`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]models.Room, 0)
	for rows.Next() {
		room := models.Room{}
		var stateJSON []byte
		if scanErr := rows.Scan(
			&room.ID,
			&room.PartyID,
			&room.Status,
			&stateJSON,
			&room.CreatedAt,
			&room.UpdatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		if err := json.Unmarshal(stateJSON, &room.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state of room %d: %w", room.ID, err)
		}
		rooms = append(rooms, room)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}
