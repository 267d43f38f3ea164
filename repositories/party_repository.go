package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nurbekov/courtside/models"
)

var ErrPartyNotFound = errors.New("party not found")

type PartyRepository interface {
	Create(ctx context.Context, party *models.Party) error
	GetByID(ctx context.Context, id int) (*models.Party, error)
	List(ctx context.Context, status *models.PartyStatus, limit, offset int) ([]models.Party, error)
	Update(ctx context.Context, party *models.Party) error
	UpdateStatus(ctx context.Context, id int, status models.PartyStatus) error
}

type postgresPartyRepository struct {
	db *sql.DB
}

func NewPostgresPartyRepository(db *sql.DB) PartyRepository {
	return &postgresPartyRepository{db: db}
}

func (r *postgresPartyRepository) Create(ctx context.Context, party *models.Party) error {
	query := `
		INSERT INTO parties (name, description, location, host_id, starts_at,
			court_cost_cents, shuttle_price_cents, max_players, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		party.Name,
		party.Description,
		party.Location,
		party.HostID,
		party.StartsAt,
		party.CourtCostCents,
		party.ShuttlePriceCents,
		party.MaxPlayers,
		party.Status,
	).Scan(&party.ID, &party.CreatedAt)
}

func (r *postgresPartyRepository) GetByID(ctx context.Context, id int) (*models.Party, error) {
	query := `
		SELECT id, name, description, location, host_id, starts_at,
			court_cost_cents, shuttle_price_cents, max_players, status, created_at
		FROM parties
		WHERE id = $1`
	party := &models.Party{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&party.ID,
		&party.Name,
		&party.Description,
		&party.Location,
		&party.HostID,
		&party.StartsAt,
		&party.CourtCostCents,
		&party.ShuttlePriceCents,
		&party.MaxPlayers,
		&party.Status,
		&party.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}
	return party, nil
}

func (r *postgresPartyRepository) List(ctx context.Context, status *models.PartyStatus, limit, offset int) ([]models.Party, error) {
	query := `
		SELECT id, name, description, location, host_id, starts_at,
			court_cost_cents, shuttle_price_cents, max_players, status, created_at
		FROM parties
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY starts_at ASC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parties := make([]models.Party, 0)
	for rows.Next() {
		var party models.Party
		if scanErr := rows.Scan(
			&party.ID,
			&party.Name,
			&party.Description,
			&party.Location,
			&party.HostID,
			&party.StartsAt,
			&party.CourtCostCents,
			&party.ShuttlePriceCents,
			&party.MaxPlayers,
			&party.Status,
			&party.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		parties = append(parties, party)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return parties, nil
}

func (r *postgresPartyRepository) Update(ctx context.Context, party *models.Party) error {
	query := `
		UPDATE parties
		SET name = $1, description = $2, location = $3, starts_at = $4,
			court_cost_cents = $5, shuttle_price_cents = $6, max_players = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(ctx, query,
		party.Name,
		party.Description,
		party.Location,
		party.StartsAt,
		party.CourtCostCents,
		party.ShuttlePriceCents,
		party.MaxPlayers,
		party.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPartyNotFound)
}

func (r *postgresPartyRepository) UpdateStatus(ctx context.Context, id int, status models.PartyStatus) error {
	query := `UPDATE parties SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPartyNotFound)
}
