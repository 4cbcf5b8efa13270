// Package ledger owns student wallet balances. Debit and Credit are the only
// code paths that mutate wallet_balance; both work against any bun.IDB so the
// ticketing engine can run them inside its own transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/uptrace/bun"

	"ms-clubs/internal/models"
)

var (
	// ErrInvalidAmount is returned for non-positive or non-finite amounts.
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrInsufficientFunds is returned when a debit would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	// ErrStudentNotFound is returned when the wallet owner does not exist.
	ErrStudentNotFound = errors.New("student not found")
)

// Round2 normalizes an amount to the wallet's fixed 2-decimal precision.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func validAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && Round2(amount) > 0
}

// Debit subtracts amount from the student's wallet. The guarded UPDATE keeps
// the balance non-negative even under concurrent debits: a row only matches
// while wallet_balance >= amount.
func Debit(ctx context.Context, db bun.IDB, studentID string, amount float64) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	amount = Round2(amount)

	res, err := db.NewUpdate().
		Model((*models.Student)(nil)).
		Set("wallet_balance = wallet_balance - ?", amount).
		Where("id = ?", studentID).
		Where("wallet_balance >= ?", amount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if rows == 0 {
		exists, err := db.NewSelect().
			Model((*models.Student)(nil)).
			Where("id = ?", studentID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		if !exists {
			return ErrStudentNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

// Credit adds amount to the student's wallet. There is no upper bound.
func Credit(ctx context.Context, db bun.IDB, studentID string, amount float64) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	amount = Round2(amount)

	res, err := db.NewUpdate().
		Model((*models.Student)(nil)).
		Set("wallet_balance = wallet_balance + ?", amount).
		Where("id = ?", studentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	if rows == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// Balance reads the current wallet balance.
func Balance(ctx context.Context, db bun.IDB, studentID string) (float64, error) {
	var student models.Student
	err := db.NewSelect().
		Model(&student).
		Column("wallet_balance").
		Where("id = ?", studentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return 0, ErrStudentNotFound
	}
	return student.WalletBalance, nil
}
