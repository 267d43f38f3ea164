package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/nurbekov/courtside/models"
)

var (
	ErrMemberNotFound = errors.New("party member not found")
	ErrAlreadyMember  = errors.New("user is already a member of this party")
)

// MemberRepository is the roster provider: the coordinator seeds its queue
// from ListByParty at session start.
type MemberRepository interface {
	Add(ctx context.Context, member *models.Member) error
	Remove(ctx context.Context, partyID, userID int) error
	Get(ctx context.Context, partyID, userID int) (*models.Member, error)
	ListByParty(ctx context.Context, partyID int) ([]models.Member, error)
	UpdateLevel(ctx context.Context, partyID, userID int, level models.SkillLevel) error
	CountByParty(ctx context.Context, partyID int) (int, error)
}

type postgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) MemberRepository {
	return &postgresMemberRepository{db: db}
}

func (r *postgresMemberRepository) Add(ctx context.Context, member *models.Member) error {
	query := `
		INSERT INTO party_members (party_id, user_id, level)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at`
	err := r.db.QueryRowContext(ctx, query,
		member.PartyID,
		member.UserID,
		member.Level,
	).Scan(&member.ID, &member.JoinedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrAlreadyMember
		}
		return err
	}
	return nil
}

func (r *postgresMemberRepository) Remove(ctx context.Context, partyID, userID int) error {
	query := `DELETE FROM party_members WHERE party_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, partyID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) Get(ctx context.Context, partyID, userID int) (*models.Member, error) {
	query := `
		SELECT m.id, m.party_id, m.user_id, m.level, m.joined_at, u.nickname, u.avatar_key
		FROM party_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.party_id = $1 AND m.user_id = $2`
	member := &models.Member{}
	var avatarKey *string
	err := r.db.QueryRowContext(ctx, query, partyID, userID).Scan(
		&member.ID,
		&member.PartyID,
		&member.UserID,
		&member.Level,
		&member.JoinedAt,
		&member.Nickname,
		&avatarKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	member.AvatarURL = avatarKey // raw key; the service resolves public URLs
	return member, nil
}

func (r *postgresMemberRepository) ListByParty(ctx context.Context, partyID int) ([]models.Member, error) {
	query := `
		SELECT m.id, m.party_id, m.user_id, m.level, m.joined_at, u.nickname, u.avatar_key
		FROM party_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.party_id = $1
		ORDER BY m.joined_at ASC`
	rows, err := r.db.QueryContext(ctx, query, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		var member models.Member
		var avatarKey *string
		if scanErr := rows.Scan(
			&member.ID,
			&member.PartyID,
			&member.UserID,
			&member.Level,
			&member.JoinedAt,
			&member.Nickname,
			&avatarKey,
		); scanErr != nil {
			return nil, scanErr
		}
		member.AvatarURL = avatarKey
		members = append(members, member)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *postgresMemberRepository) UpdateLevel(ctx context.Context, partyID, userID int, level models.SkillLevel) error {
	query := `UPDATE party_members SET level = $1 WHERE party_id = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, level, partyID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}

func (r *postgresMemberRepository) CountByParty(ctx context.Context, partyID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM party_members WHERE party_id = $1`, partyID).Scan(&count)
	return count, err
}
