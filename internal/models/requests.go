package models

import "time"

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Password2  string `json:"password2"`
	Faculty    string `json:"faculty"`
	Speciality string `json:"speciality"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UpdateStudentRequest struct {
	Email      *string `json:"email,omitempty"`
	Faculty    *string `json:"faculty,omitempty"`
	Speciality *string `json:"speciality,omitempty"`
	Password   *string `json:"password,omitempty"`
}

type TopUpRequest struct {
	Amount float64 `json:"amount"`
}

type ClubRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

type RoomRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Location string `json:"location,omitempty"`
	Image    string `json:"image,omitempty"`
}

type EventRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ClubID       string    `json:"club_id"`
	RoomID       string    `json:"room_id,omitempty"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	TicketType   string    `json:"ticket_type"`
	TicketPrice  float64   `json:"ticket_price"`
	TotalTickets int       `json:"total_tickets"`
	Image        string    `json:"image,omitempty"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

type SubscribeRequest struct {
	UserID string `json:"user_id,omitempty"`
	ClubID string `json:"club_id"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type PurchaseTicketRequest struct {
	StudentID string `json:"student_id,omitempty"`
}
