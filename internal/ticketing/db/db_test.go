package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-clubs/internal/ledger"
	"ms-clubs/internal/models"
	"ms-clubs/internal/ticketing/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Student)(nil),
		(*models.Club)(nil),
		(*models.Event)(nil),
		(*models.Ticket)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
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

func insertEvent(t *testing.T, bunDB *bun.DB, ticketType string, price float64, totalTickets int) string {
	event := models.Event{
		ID:           uuid.New().String(),
		Title:        "Robotics Night",
		ClubID:       "club-1",
		StartDate:    time.Now().Add(24 * time.Hour),
		EndDate:      time.Now().Add(26 * time.Hour),
		TicketType:   ticketType,
		TicketPrice:  price,
		TotalTickets: totalTickets,
		CreatedAt:    time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&event).Exec(context.Background())
	assert.NoError(t, err)
	return event.ID
}

func TestPurchasePaidEvent(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 100.0)
	eventID := insertEvent(t, bunDB, models.TicketTypePaid, 30.0, 10)

	ticket, err := ticketDB.Purchase(ctx, studentID, eventID)
	assert.NoError(t, err)
	assert.NotNil(t, ticket)
	assert.Equal(t, 30.0, ticket.PricePaid)
	assert.Equal(t, studentID, ticket.StudentID)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 70.0, balance)

	count, err := bunDB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPurchaseFreeEventSkipsWallet(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 0)
	eventID := insertEvent(t, bunDB, models.TicketTypeFree, 0, 10)

	ticket, err := ticketDB.Purchase(ctx, studentID, eventID)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, ticket.PricePaid)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestPurchaseInsufficientFundsRollsBack(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 10.0)
	eventID := insertEvent(t, bunDB, models.TicketTypePaid, 30.0, 10)

	ticket, err := ticketDB.Purchase(ctx, studentID, eventID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Nil(t, ticket)

	// Neither the wallet nor the tickets table changed.
	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 10.0, balance)

	count, err := bunDB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPurchaseDuplicateTicket(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 100.0)
	eventID := insertEvent(t, bunDB, models.TicketTypePaid, 10.0, 10)

	_, err := ticketDB.Purchase(ctx, studentID, eventID)
	assert.NoError(t, err)

	_, err = ticketDB.Purchase(ctx, studentID, eventID)
	assert.ErrorIs(t, err, db.ErrDuplicateTicket)

	// The second attempt did not debit anything.
	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 90.0, balance)
}

func TestPurchaseSoldOut(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, models.TicketTypeFree, 0, 2)

	for i := 0; i < 2; i++ {
		studentID := insertStudent(t, bunDB, 0)
		_, err := ticketDB.Purchase(ctx, studentID, eventID)
		assert.NoError(t, err)
	}

	lateStudent := insertStudent(t, bunDB, 0)
	_, err := ticketDB.Purchase(ctx, lateStudent, eventID)
	assert.ErrorIs(t, err, db.ErrNoTicketsAvailable)

	count, err := bunDB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPurchaseUnknownEvent(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	studentID := insertStudent(t, bunDB, 100.0)
	_, err := ticketDB.Purchase(context.Background(), studentID, "missing")
	assert.ErrorIs(t, err, db.ErrEventNotFound)
}

func TestCancelRefundsCurrentPrice(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 50.0)
	eventID := insertEvent(t, bunDB, models.TicketTypePaid, 30.0, 10)

	ticket, err := ticketDB.Purchase(ctx, studentID, eventID)
	assert.NoError(t, err)

	// The club raises the price after the purchase; the refund follows the
	// current price, not the recorded one.
	_, err = bunDB.NewUpdate().
		Model((*models.Event)(nil)).
		Set("ticket_price = ?", 45.0).
		Where("id = ?", eventID).
		Exec(ctx)
	assert.NoError(t, err)

	cancelled, err := ticketDB.Cancel(ctx, ticket.TicketID)
	assert.NoError(t, err)
	assert.Equal(t, studentID, cancelled.StudentID)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 65.0, balance)

	_, err = ticketDB.GetTicketByID(ctx, ticket.TicketID)
	assert.ErrorIs(t, err, db.ErrTicketNotFound)
}

func TestCancelFreeTicket(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	studentID := insertStudent(t, bunDB, 5.0)
	eventID := insertEvent(t, bunDB, models.TicketTypeFree, 0, 10)

	ticket, err := ticketDB.Purchase(ctx, studentID, eventID)
	assert.NoError(t, err)

	_, err = ticketDB.Cancel(ctx, ticket.TicketID)
	assert.NoError(t, err)

	balance, err := ledger.Balance(ctx, bunDB, studentID)
	assert.NoError(t, err)
	assert.Equal(t, 5.0, balance)
}

func TestCancelFreesCapacity(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	eventID := insertEvent(t, bunDB, models.TicketTypeFree, 0, 1)

	first := insertStudent(t, bunDB, 0)
	ticket, err := ticketDB.Purchase(ctx, first, eventID)
	assert.NoError(t, err)

	second := insertStudent(t, bunDB, 0)
	_, err = ticketDB.Purchase(ctx, second, eventID)
	assert.ErrorIs(t, err, db.ErrNoTicketsAvailable)

	_, err = ticketDB.Cancel(ctx, ticket.TicketID)
	assert.NoError(t, err)

	_, err = ticketDB.Purchase(ctx, second, eventID)
	assert.NoError(t, err)
}

func TestCancelUnknownTicket(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := ticketDB.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrTicketNotFound)
}

func TestListOwnOrHeaded(t *testing.T) {
	ticketDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	ownEventID := insertEvent(t, bunDB, models.TicketTypeFree, 0, 10)

	headedEvent := models.Event{
		ID:           uuid.New().String(),
		Title:        "Chess Open",
		ClubID:       "club-2",
		StartDate:    time.Now().Add(24 * time.Hour),
		EndDate:      time.Now().Add(26 * time.Hour),
		TicketType:   models.TicketTypeFree,
		TotalTickets: 10,
		CreatedAt:    time.Now(),
	}
	_, err := bunDB.NewInsert().Model(&headedEvent).Exec(ctx)
	assert.NoError(t, err)

	me := insertStudent(t, bunDB, 0)
	other := insertStudent(t, bunDB, 0)

	_, err = ticketDB.Purchase(ctx, me, ownEventID)
	assert.NoError(t, err)
	_, err = ticketDB.Purchase(ctx, other, headedEvent.ID)
	assert.NoError(t, err)
	_, err = ticketDB.Purchase(ctx, other, ownEventID)
	assert.NoError(t, err)

	// Plain member view: only own tickets.
	tickets, err := ticketDB.ListOwnOrHeaded(ctx, me, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(tickets))
	assert.Equal(t, me, tickets[0].StudentID)

	// Head of club-2: own tickets plus that club's event tickets.
	tickets, err = ticketDB.ListOwnOrHeaded(ctx, me, []string{"club-2"})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(tickets))
}
