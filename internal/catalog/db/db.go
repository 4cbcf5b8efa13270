package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"ms-clubs/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- CLUBS ----------------

func (d *DB) CreateClub(ctx context.Context, club *models.Club) error {
	_, err := d.Bun.NewInsert().Model(club).Exec(ctx)
	return err
}

func (d *DB) GetClub(ctx context.Context, id string) (*models.Club, error) {
	var club models.Club
	err := d.Bun.NewSelect().
		Model(&club).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &club, nil
}

func (d *DB) ListClubs(ctx context.Context) ([]models.Club, error) {
	var clubs []models.Club
	err := d.Bun.NewSelect().
		Model(&clubs).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return clubs, nil
}

// ClubNameExists does a case-insensitive uniqueness probe. excludeID skips
// the club being updated.
func (d *DB) ClubNameExists(ctx context.Context, name, excludeID string) (bool, error) {
	q := d.Bun.NewSelect().
		Model((*models.Club)(nil)).
		Where("lower(name) = lower(?)", name)
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func (d *DB) UpdateClub(ctx context.Context, club *models.Club) error {
	_, err := d.Bun.NewUpdate().
		Model(club).
		Column("name", "description", "logo").
		Where("id = ?", club.ID).
		Exec(ctx)
	return err
}

// DeleteClub removes a club and everything hanging off it. The cascade is
// explicit so Postgres and the SQLite test dialect behave identically.
func (d *DB) DeleteClub(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		clubEvents := tx.NewSelect().
			Model((*models.Event)(nil)).
			Column("id").
			Where("club_id = ?", id)

		if _, err := tx.NewDelete().
			Model((*models.EventReview)(nil)).
			Where("event_id IN (?)", clubEvents).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("event_id IN (?)", clubEvents).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("club_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.ClubMember)(nil)).
			Where("club_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Subscription)(nil)).
			Where("club_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Club)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// ---------------- ROOMS ----------------

func (d *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	_, err := d.Bun.NewInsert().Model(room).Exec(ctx)
	return err
}

func (d *DB) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := d.Bun.NewSelect().
		Model(&room).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (d *DB) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := d.Bun.NewSelect().
		Model(&rooms).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (d *DB) UpdateRoom(ctx context.Context, room *models.Room) error {
	_, err := d.Bun.NewUpdate().
		Model(room).
		Column("name", "capacity", "location", "image").
		Where("id = ?", room.ID).
		Exec(ctx)
	return err
}

// DeleteRoom clears event references instead of cascading: events survive
// their room.
func (d *DB) DeleteRoom(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("room_id = NULL").
			Where("room_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Room)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// ---------------- EVENTS ----------------

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

// GetEvent loads an event with its tickets_sold count.
func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		ColumnExpr("event.*").
		ColumnExpr("(SELECT COUNT(*) FROM tickets AS t WHERE t.event_id = event.id) AS tickets_sold").
		Where("event.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	event.TicketsAvailable = event.TotalTickets - event.TicketsSold
	return &event, nil
}

// EventFilter narrows ListEvents. Zero value lists everything.
type EventFilter struct {
	ClubID   string
	Upcoming bool
	Now      time.Time
}

func (d *DB) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	var events []models.Event
	q := d.Bun.NewSelect().
		Model(&events).
		ColumnExpr("event.*").
		ColumnExpr("(SELECT COUNT(*) FROM tickets AS t WHERE t.event_id = event.id) AS tickets_sold").
		Order("start_date DESC")

	if filter.ClubID != "" {
		q = q.Where("event.club_id = ?", filter.ClubID)
	}
	if filter.Upcoming {
		q = q.Where("event.start_date >= ?", filter.Now)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].TicketsAvailable = events[i].TotalTickets - events[i].TicketsSold
	}
	return events, nil
}

func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewUpdate().
		Model(event).
		Column("title", "description", "room_id", "start_date", "end_date",
			"ticket_type", "ticket_price", "total_tickets", "image").
		Where("id = ?", event.ID).
		Exec(ctx)
	return err
}

// DeleteEvent cascades to tickets and reviews explicitly.
func (d *DB) DeleteEvent(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.EventReview)(nil)).
			Where("event_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("event_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

func (d *DB) RoomExists(ctx context.Context, id string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Room)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

func (d *DB) ClubExists(ctx context.Context, id string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Club)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}
