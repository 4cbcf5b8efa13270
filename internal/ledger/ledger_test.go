package ledger_test

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-clubs/internal/ledger"
	"ms-clubs/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Student)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create students table: %v", err)
	}

	return bunDB
}

func insertStudent(t *testing.T, bunDB *bun.DB, balance float64) string {
	student := models.Student{
		ID:            uuid.New().String(),
		Username:      "student-" + uuid.New().String()[:8],
		Email:         uuid.New().String()[:8] + "@campus.edu",
		PasswordHash:  "x",
		WalletBalance: balance,
		CreatedAt:     time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&student).Exec(context.Background())
	assert.NoError(t, err)
	return student.ID
}

func TestDebitHappyPath(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 100.0)

	err := ledger.Debit(ctx, bunDB, studentID, 40.0)
	assert.NoError(t, err)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 60.0, balance)
}

func TestDebitInsufficientFunds(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 10.0)

	err := ledger.Debit(ctx, bunDB, studentID, 10.01)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// Balance is untouched after a failed debit.
	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 10.0, balance)
}

func TestDebitExactBalance(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 25.50)

	err := ledger.Debit(ctx, bunDB, studentID, 25.50)
	assert.NoError(t, err)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestDebitUnknownStudent(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()

	err := ledger.Debit(context.Background(), bunDB, "missing", 5.0)
	assert.ErrorIs(t, err, ledger.ErrStudentNotFound)
}

func TestDebitInvalidAmounts(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 100.0)

	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1), 0.001} {
		err := ledger.Debit(ctx, bunDB, studentID, amount)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	}
}

func TestCredit(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 0)

	err := ledger.Credit(ctx, bunDB, studentID, 15.75)
	assert.NoError(t, err)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 15.75, balance)

	err = ledger.Credit(ctx, bunDB, "missing", 5.0)
	assert.ErrorIs(t, err, ledger.ErrStudentNotFound)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.56, ledger.Round2(10.556))
	assert.Equal(t, 10.55, ledger.Round2(10.554))
	assert.Equal(t, 0.0, ledger.Round2(0.004))
}
