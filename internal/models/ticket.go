package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:ticket"`

	TicketID    string    `bun:"ticket_id,pk" json:"ticket_id"`
	StudentID   string    `bun:"student_id,notnull" json:"student_id"`
	EventID     string    `bun:"event_id,notnull" json:"event_id"`
	PricePaid   float64   `bun:"price_paid,notnull,default:0" json:"price_paid"`
	PurchasedAt time.Time `bun:"purchased_at,notnull" json:"purchased_at"`

	Student *Student `bun:"rel:belongs-to,join:student_id=id" json:"student,omitempty"`
	Event   *Event   `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

type EventReview struct {
	bun.BaseModel `bun:"table:event_reviews,alias:review"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull" json:"event_id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	Rating    int       `bun:"rating,notnull" json:"rating"`
	Comment   string    `bun:"comment" json:"comment"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`

	User  *Student `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Event *Event   `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}
