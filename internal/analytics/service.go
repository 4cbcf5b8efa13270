// Package analytics aggregates sales and attendance figures for club and
// event dashboards.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-clubs/internal/models"
)

// Service computes analytics straight from the ticketing tables.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// EventAnalytics is the aggregated sales picture for one event.
type EventAnalytics struct {
	EventID          string              `json:"event_id"`
	Title            string              `json:"title"`
	TotalRevenue     float64             `json:"total_revenue"`
	TotalTicketsSold int                 `json:"total_tickets_sold"`
	TicketsRemaining int                 `json:"tickets_remaining"`
	AverageRating    float64             `json:"average_rating"`
	ReviewCount      int                 `json:"review_count"`
	DailySales       []DailySalesMetrics `json:"daily_sales"`
}

// DailySalesMetrics contains metrics for a single day.
type DailySalesMetrics struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	TicketsSold int     `json:"tickets_sold"`
}

// ClubAnalytics summarizes a club's activity across all its events.
type ClubAnalytics struct {
	ClubID           string         `json:"club_id"`
	Name             string         `json:"name"`
	MemberCount      int            `json:"member_count"`
	SubscriberCount  int            `json:"subscriber_count"`
	EventCount       int            `json:"event_count"`
	TotalRevenue     float64        `json:"total_revenue"`
	TotalTicketsSold int            `json:"total_tickets_sold"`
	Events           []EventSummary `json:"events"`
}

// EventSummary is one row in the club rollup.
type EventSummary struct {
	EventID          string  `json:"event_id"`
	Title            string  `json:"title"`
	TotalRevenue     float64 `json:"total_revenue"`
	TotalTicketsSold int     `json:"total_tickets_sold"`
	TotalTickets     int     `json:"total_tickets"`
}

// GetEventAnalytics aggregates one event's tickets and reviews.
func (s *Service) GetEventAnalytics(ctx context.Context, eventID string) (*EventAnalytics, error) {
	var event models.Event
	err := s.db.NewSelect().
		Model(&event).
		Where("event.id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("event not found: %w", err)
	}

	var tickets []models.Ticket
	err = s.db.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Order("purchased_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	analytics := &EventAnalytics{
		EventID:          event.ID,
		Title:            event.Title,
		TotalTicketsSold: len(tickets),
		TicketsRemaining: event.TotalTickets - len(tickets),
	}

	daily := make(map[string]*DailySalesMetrics)
	var days []string
	for _, t := range tickets {
		analytics.TotalRevenue += t.PricePaid

		day := t.PurchasedAt.Format("2006-01-02")
		m, ok := daily[day]
		if !ok {
			m = &DailySalesMetrics{Date: day}
			daily[day] = m
			days = append(days, day)
		}
		m.Revenue += t.PricePaid
		m.TicketsSold++
	}
	for _, day := range days {
		analytics.DailySales = append(analytics.DailySales, *daily[day])
	}

	var reviews []models.EventReview
	err = s.db.NewSelect().
		Model(&reviews).
		Where("event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	analytics.ReviewCount = len(reviews)
	if len(reviews) > 0 {
		var sum int
		for _, r := range reviews {
			sum += r.Rating
		}
		analytics.AverageRating = float64(sum) / float64(len(reviews))
	}

	return analytics, nil
}

// GetClubAnalytics rolls up membership, subscriptions and ticket sales for
// one club.
func (s *Service) GetClubAnalytics(ctx context.Context, clubID string) (*ClubAnalytics, error) {
	var club models.Club
	err := s.db.NewSelect().
		Model(&club).
		Where("id = ?", clubID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("club not found: %w", err)
	}

	analytics := &ClubAnalytics{
		ClubID: club.ID,
		Name:   club.Name,
	}

	analytics.MemberCount, err = s.db.NewSelect().
		Model((*models.ClubMember)(nil)).
		Where("club_id = ?", clubID).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	analytics.SubscriberCount, err = s.db.NewSelect().
		Model((*models.Subscription)(nil)).
		Where("club_id = ?", clubID).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}

	var events []models.Event
	err = s.db.NewSelect().
		Model(&events).
		Where("club_id = ?", clubID).
		Order("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	analytics.EventCount = len(events)

	for _, event := range events {
		var tickets []models.Ticket
		err = s.db.NewSelect().
			Model(&tickets).
			Where("event_id = ?", event.ID).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tickets for event %s: %w", event.ID, err)
		}

		summary := EventSummary{
			EventID:          event.ID,
			Title:            event.Title,
			TotalTicketsSold: len(tickets),
			TotalTickets:     event.TotalTickets,
		}
		for _, t := range tickets {
			summary.TotalRevenue += t.PricePaid
		}

		analytics.TotalRevenue += summary.TotalRevenue
		analytics.TotalTicketsSold += summary.TotalTicketsSold
		analytics.Events = append(analytics.Events, summary)
	}

	return analytics, nil
}

// EventClubID resolves which club an event belongs to.
func (s *Service) EventClubID(ctx context.Context, eventID string) (string, error) {
	var clubID string
	err := s.db.NewSelect().
		Model((*models.Event)(nil)).
		Column("club_id").
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx, &clubID)
	if err != nil {
		return "", fmt.Errorf("event not found: %w", err)
	}
	return clubID, nil
}

// TopEvents returns the best selling events across all clubs within the
// given window.
func (s *Service) TopEvents(ctx context.Context, since time.Time, limit int) ([]EventSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []struct {
		EventID      string  `bun:"event_id"`
		Title        string  `bun:"title"`
		TotalTickets int     `bun:"total_tickets"`
		Sold         int     `bun:"sold"`
		Revenue      float64 `bun:"revenue"`
	}
	err := s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("ticket.event_id AS event_id").
		ColumnExpr("event.title AS title").
		ColumnExpr("event.total_tickets AS total_tickets").
		ColumnExpr("COUNT(*) AS sold").
		ColumnExpr("SUM(ticket.price_paid) AS revenue").
		Join("JOIN events AS event ON event.id = ticket.event_id").
		Where("ticket.purchased_at >= ?", since).
		GroupExpr("ticket.event_id, event.title, event.total_tickets").
		OrderExpr("sold DESC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("top events: %w", err)
	}

	summaries := make([]EventSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, EventSummary{
			EventID:          row.EventID,
			Title:            row.Title,
			TotalTickets:     row.TotalTickets,
			TotalTicketsSold: row.Sold,
			TotalRevenue:     row.Revenue,
		})
	}
	return summaries, nil
}
