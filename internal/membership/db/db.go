package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-clubs/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// IsHead reports whether the user holds the head role in the given club.
// The administrator bypass lives in the authorizer, not here.
func (d *DB) IsHead(ctx context.Context, userID, clubID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.ClubMember)(nil)).
		Where("user_id = ?", userID).
		Where("club_id = ?", clubID).
		Where("role = ?", models.RoleHead).
		Exists(ctx)
}

func (d *DB) GetMembership(ctx context.Context, userID, clubID string) (*models.ClubMember, error) {
	var m models.ClubMember
	err := d.Bun.NewSelect().
		Model(&m).
		Where("user_id = ?", userID).
		Where("club_id = ?", clubID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *DB) GetMembershipByID(ctx context.Context, id string) (*models.ClubMember, error) {
	var m models.ClubMember
	err := d.Bun.NewSelect().
		Model(&m).
		Where("member.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *DB) CreateMembership(ctx context.Context, m *models.ClubMember) error {
	_, err := d.Bun.NewInsert().Model(m).Exec(ctx)
	return err
}

func (d *DB) UpdateRole(ctx context.Context, id, role string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.ClubMember)(nil)).
		Set("role = ?", role).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) DeleteMembership(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.ClubMember)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListByClub(ctx context.Context, clubID string) ([]models.ClubMember, error) {
	var members []models.ClubMember
	err := d.Bun.NewSelect().
		Model(&members).
		Relation("User").
		Where("club_id = ?", clubID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (d *DB) ListByUser(ctx context.Context, userID string) ([]models.ClubMember, error) {
	var members []models.ClubMember
	err := d.Bun.NewSelect().
		Model(&members).
		Relation("Club").
		Where("user_id = ?", userID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// HeadClubIDs returns the clubs the user heads, used for listing scope.
func (d *DB) HeadClubIDs(ctx context.Context, userID string) ([]string, error) {
	var clubIDs []string
	err := d.Bun.NewSelect().
		Model((*models.ClubMember)(nil)).
		Column("club_id").
		Where("user_id = ?", userID).
		Where("role = ?", models.RoleHead).
		Scan(ctx, &clubIDs)
	if err != nil {
		return nil, err
	}
	return clubIDs, nil
}

func (d *DB) GetClub(ctx context.Context, clubID string) (*models.Club, error) {
	var c models.Club
	err := d.Bun.NewSelect().
		Model(&c).
		Where("id = ?", clubID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) ClubExists(ctx context.Context, clubID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Club)(nil)).
		Where("id = ?", clubID).
		Exists(ctx)
}

func (d *DB) GetStudent(ctx context.Context, userID string) (*models.Student, error) {
	var s models.Student
	err := d.Bun.NewSelect().
		Model(&s).
		Where("id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IsNoRows normalizes the driver's empty-result error.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
