package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-clubs/internal/ledger"
	"ms-clubs/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	err := d.Bun.NewSelect().
		Model(&student).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (d *DB) GetByUsername(ctx context.Context, username string) (*models.Student, error) {
	var student models.Student
	err := d.Bun.NewSelect().
		Model(&student).
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (d *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Student)(nil)).
		Where("lower(username) = lower(?)", username).
		Exists(ctx)
}

func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Student)(nil)).
		Where("lower(email) = lower(?)", email).
		Exists(ctx)
}

func (d *DB) Create(ctx context.Context, student *models.Student) error {
	_, err := d.Bun.NewInsert().Model(student).Exec(ctx)
	return err
}

func (d *DB) Update(ctx context.Context, student *models.Student) error {
	_, err := d.Bun.NewUpdate().
		Model(student).
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := d.Bun.NewSelect().
		Model(&students).
		Order("username ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (d *DB) CreateVerification(ctx context.Context, v *models.EmailVerification) error {
	_, err := d.Bun.NewInsert().Model(v).Exec(ctx)
	return err
}

func (d *DB) GetVerification(ctx context.Context, code string) (*models.EmailVerification, error) {
	var v models.EmailVerification
	err := d.Bun.NewSelect().
		Model(&v).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkVerified flips the verification row and the student flag together.
func (d *DB) MarkVerified(ctx context.Context, code, userID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.EmailVerification)(nil)).
			Set("status = ?", models.VerificationVerified).
			Where("code = ?", code).
			Exec(ctx); err != nil {
			return fmt.Errorf("update verification: %w", err)
		}
		_, err := tx.NewUpdate().
			Model((*models.Student)(nil)).
			Set("is_email_verified = ?", true).
			Where("id = ?", userID).
			Exec(ctx)
		return err
	})
}

func (d *DB) MarkExpired(ctx context.Context, code string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.EmailVerification)(nil)).
		Set("status = ?", models.VerificationExpired).
		Where("code = ?", code).
		Exec(ctx)
	return err
}

// Credit adds funds to the student's wallet through the ledger.
func (d *DB) Credit(ctx context.Context, studentID string, amount float64) error {
	return ledger.Credit(ctx, d.Bun, studentID, amount)
}

func (d *DB) Balance(ctx context.Context, studentID string) (float64, error) {
	return ledger.Balance(ctx, d.Bun, studentID)
}

// HeadsClubOf reports whether headID leads any club the student belongs to.
func (d *DB) HeadsClubOf(ctx context.Context, headID, studentID string) (bool, error) {
	var clubIDs []string
	err := d.Bun.NewSelect().
		Model((*models.ClubMember)(nil)).
		Column("club_id").
		Where("user_id = ?", headID).
		Where("role = ?", models.RoleHead).
		Scan(ctx, &clubIDs)
	if err != nil {
		return false, err
	}
	if len(clubIDs) == 0 {
		return false, nil
	}
	return d.Bun.NewSelect().
		Model((*models.ClubMember)(nil)).
		Where("user_id = ?", studentID).
		Where("club_id IN (?)", bun.In(clubIDs)).
		Exists(ctx)
}

func (d *DB) IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
