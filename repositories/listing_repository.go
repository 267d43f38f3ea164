package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nurbekov/courtside/models"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id int) (*models.Listing, error)
	List(ctx context.Context, status *models.ListingStatus, limit, offset int) ([]models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
	Delete(ctx context.Context, id int) error
}

type postgresListingRepository struct {
	db *sql.DB
}

func NewPostgresListingRepository(db *sql.DB) ListingRepository {
	return &postgresListingRepository{db: db}
}

func (r *postgresListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	query := `
		INSERT INTO listings (seller_id, title, description, price_cents, condition, status, photo_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		listing.SellerID,
		listing.Title,
		listing.Description,
		listing.PriceCents,
		listing.Condition,
		listing.Status,
		listing.PhotoKey,
	).Scan(&listing.ID, &listing.CreatedAt)
}

func (r *postgresListingRepository) GetByID(ctx context.Context, id int) (*models.Listing, error) {
	query := `
		SELECT id, seller_id, title, description, price_cents, condition, status, photo_key, created_at
		FROM listings
		WHERE id = $1`
	listing := &models.Listing{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&listing.ID,
		&listing.SellerID,
		&listing.Title,
		&listing.Description,
		&listing.PriceCents,
		&listing.Condition,
		&listing.Status,
		&listing.PhotoKey,
		&listing.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return listing, nil
}

func (r *postgresListingRepository) List(ctx context.Context, status *models.ListingStatus, limit, offset int) ([]models.Listing, error) {
	query := `
		SELECT id, seller_id, title, description, price_cents, condition, status, photo_key, created_at
		FROM listings
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]models.Listing, 0)
	for rows.Next() {
		var listing models.Listing
		if scanErr := rows.Scan(
			&listing.ID,
			&listing.SellerID,
			&listing.Title,
			&listing.Description,
			&listing.PriceCents,
			&listing.Condition,
			&listing.Status,
			&listing.PhotoKey,
			&listing.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		listings = append(listings, listing)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *postgresListingRepository) Update(ctx context.Context, listing *models.Listing) error {
	query := `
		UPDATE listings
		SET title = $1, description = $2, price_cents = $3, condition = $4, status = $5, photo_key = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(ctx, query,
		listing.Title,
		listing.Description,
		listing.PriceCents,
		listing.Condition,
		listing.Status,
		listing.PhotoKey,
		listing.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrListingNotFound)
}

func (r *postgresListingRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrListingNotFound)
}
