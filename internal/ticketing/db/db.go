package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-clubs/internal/ledger"
	"ms-clubs/internal/models"
)

var (
	// ErrNoTicketsAvailable is returned when the event is sold out.
	ErrNoTicketsAvailable = errors.New("no tickets available for this event")
	// ErrDuplicateTicket is returned when the student already holds a ticket.
	ErrDuplicateTicket = errors.New("student already has a ticket for this event")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrEventNotFound   = errors.New("event not found")
)

type DB struct {
	Bun *bun.DB
}

// lockForUpdate serializes concurrent purchases on the same event row.
// SQLite (used by the tests) is single-writer and rejects the clause.
func (d *DB) lockForUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if d.Bun.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}

// Purchase runs the Absent→Held transition as one atomic unit: availability
// check, wallet debit and ticket insert commit or fail together.
func (d *DB) Purchase(ctx context.Context, studentID, eventID string) (*models.Ticket, error) {
	var ticket *models.Ticket

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var event models.Event
		q := tx.NewSelect().
			Model(&event).
			Where("event.id = ?", eventID).
			Limit(1)
		if err := d.lockForUpdate(q).Scan(ctx); err != nil {
			return ErrEventNotFound
		}

		exists, err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("student_id = ?", studentID).
			Where("event_id = ?", eventID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check duplicate ticket: %w", err)
		}
		if exists {
			return ErrDuplicateTicket
		}

		sold, err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("event_id = ?", eventID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count tickets: %w", err)
		}
		if sold >= event.TotalTickets {
			return ErrNoTicketsAvailable
		}

		price := 0.0
		if event.TicketType == models.TicketTypePaid && event.TicketPrice > 0 {
			if err := ledger.Debit(ctx, tx, studentID, event.TicketPrice); err != nil {
				return err
			}
			price = ledger.Round2(event.TicketPrice)
		}

		t := &models.Ticket{
			TicketID:    uuid.NewString(),
			StudentID:   studentID,
			EventID:     eventID,
			PricePaid:   price,
			PurchasedAt: time.Now(),
		}
		if _, err := tx.NewInsert().Model(t).Exec(ctx); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		t.Event = &event
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Cancel runs the Held→Absent transition: the refund and the row delete
// commit together. The refund is the event's *current* ticket price.
func (d *DB) Cancel(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&ticket).
			Where("ticket_id = ?", ticketID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return ErrTicketNotFound
		}

		var event models.Event
		q := tx.NewSelect().
			Model(&event).
			Where("event.id = ?", ticket.EventID).
			Limit(1)
		if err := d.lockForUpdate(q).Scan(ctx); err != nil {
			return ErrEventNotFound
		}

		if event.TicketType == models.TicketTypePaid && event.TicketPrice > 0 {
			if err := ledger.Credit(ctx, tx, ticket.StudentID, event.TicketPrice); err != nil {
				return err
			}
		}

		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("ticket_id = ?", ticketID).
			Exec(ctx); err != nil {
			return err
		}
		ticket.Event = &event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Relation("Event").
		Where("ticket_id = ?", ticketID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, ErrTicketNotFound
	}
	return &ticket, nil
}

func (d *DB) ListByStudent(ctx context.Context, studentID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Event").
		Where("student_id = ?", studentID).
		Order("purchased_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) ListByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Event").
		Where("ticket.event_id = ?", eventID).
		Order("purchased_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) ListAll(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Event").
		Order("purchased_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListOwnOrHeaded returns the caller's tickets plus, for club heads, every
// ticket of events in the clubs they head.
func (d *DB) ListOwnOrHeaded(ctx context.Context, studentID string, headClubIDs []string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	q := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Event").
		Order("purchased_at DESC")

	if len(headClubIDs) > 0 {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("ticket.student_id = ?", studentID).
				WhereOr("event.club_id IN (?)", bun.In(headClubIDs))
		})
	} else {
		q = q.Where("ticket.student_id = ?", studentID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return tickets, nil
}
