package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TicketTypeFree = "free"
	TicketTypePaid = "paid"
)

type Room struct {
	bun.BaseModel `bun:"table:rooms,alias:room"`

	ID       string `bun:"id,pk" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	Capacity int    `bun:"capacity,notnull" json:"capacity"`
	Location string `bun:"location,nullzero" json:"location,omitempty"`
	Image    string `bun:"image,nullzero" json:"image,omitempty"`
}

type Event struct {
	bun.BaseModel `bun:"table:events,alias:event"`

	ID           string    `bun:"id,pk" json:"id"`
	Title        string    `bun:"title,notnull" json:"title"`
	Description  string    `bun:"description" json:"description"`
	ClubID       string    `bun:"club_id,notnull" json:"club_id"`
	RoomID       string    `bun:"room_id,nullzero" json:"room_id,omitempty"`
	StartDate    time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate      time.Time `bun:"end_date,notnull" json:"end_date"`
	TicketType   string    `bun:"ticket_type,notnull,default:'free'" json:"ticket_type"`
	TicketPrice  float64   `bun:"ticket_price,notnull,default:0" json:"ticket_price"`
	TotalTickets int       `bun:"total_tickets,notnull" json:"total_tickets"`
	Image        string    `bun:"image,nullzero" json:"image,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`

	// Populated by catalog queries, not stored.
	TicketsSold      int `bun:"tickets_sold,scanonly" json:"tickets_sold"`
	TicketsAvailable int `bun:"-" json:"tickets_available"`

	Club *Club `bun:"rel:belongs-to,join:club_id=id" json:"club,omitempty"`
	Room *Room `bun:"rel:belongs-to,join:room_id=id" json:"room,omitempty"`
}
