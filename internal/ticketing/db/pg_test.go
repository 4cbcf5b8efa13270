package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-clubs/internal/ledger"
	"ms-clubs/internal/models"
	"ms-clubs/internal/ticketing/db"
)

// startPostgres launches a disposable PostgreSQL container. SQLite is
// single-writer, so the row-locking purchase path only runs against a real
// PostgreSQL.
func startPostgres(t *testing.T) *bun.DB {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "clubs",
				"POSTGRES_PASSWORD": "clubs",
				"POSTGRES_DB":       "clubs_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://clubs:clubs@%s:%s/clubs_test?sslmode=disable", host, port.Port())
	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	for _, model := range []interface{}{
		(*models.Student)(nil),
		(*models.Club)(nil),
		(*models.Event)(nil),
		(*models.Ticket)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	return bunDB
}

// TestConcurrentPurchasesDoNotOversell races several buyers against the last
// ticket of an event. The event row lock serializes the purchases, so exactly
// one wins and the rest see the sold-out error.
func TestConcurrentPurchasesDoNotOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	bunDB := startPostgres(t)
	ticketDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, models.TicketTypePaid, 20.0, 1)

	const buyers = 8
	students := make([]string, buyers)
	for i := range students {
		students[i] = insertStudent(t, bunDB, 100.0)
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ticketDB.Purchase(ctx, students[i], eventID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, db.ErrNoTicketsAvailable, "buyer %d", i)
	}
	assert.Equal(t, 1, winners)

	sold, err := bunDB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, sold)

	// Only the winner was debited.
	debited := 0
	for _, id := range students {
		balance, err := ledger.Balance(ctx, bunDB, id)
		assert.NoError(t, err)
		if balance == 80.0 {
			debited++
		} else {
			assert.Equal(t, 100.0, balance)
		}
	}
	assert.Equal(t, 1, debited)
}

// TestConcurrentDuplicatePurchase races the same student twice: the unique
// (student, event) pair must hold even when both attempts run at once.
func TestConcurrentDuplicatePurchase(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	bunDB := startPostgres(t)
	ticketDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, models.TicketTypePaid, 20.0, 10)
	studentID := insertStudent(t, bunDB, 100.0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ticketDB.Purchase(ctx, studentID, eventID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, db.ErrDuplicateTicket)
		}
	}
	assert.Equal(t, 1, winners)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 80.0, balance)
}
