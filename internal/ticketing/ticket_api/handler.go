package ticket_api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/ledger"
	"ms-clubs/internal/models"
	"ms-clubs/internal/ticketing"
	"ms-clubs/internal/ticketing/db"
	"ms-clubs/internal/utils"
)

// EventStore resolves the event a listing is scoped to. The catalog service
// implements it.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type Handler struct {
	Service *ticketing.Service
	Events  EventStore
}

func NewHandler(service *ticketing.Service, events EventStore) *Handler {
	return &Handler{Service: service, Events: events}
}

// PurchaseTicket handles POST /api/events/{eventID}/tickets.
func (h *Handler) PurchaseTicket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	caller := auth.FromContext(r.Context())

	var req models.PurchaseTicketRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	ticket, err := h.Service.Purchase(r.Context(), caller, eventID, req.StudentID)
	if err != nil {
		writeTicketError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, ticket)
}

// CancelTicket handles DELETE /api/tickets/{ticketID}.
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	caller := auth.FromContext(r.Context())

	if err := h.Service.Cancel(r.Context(), caller, ticketID); err != nil {
		writeTicketError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ViewTicket handles GET /api/tickets/{ticketID}.
func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	caller := auth.FromContext(r.Context())

	ticket, err := h.Service.GetTicket(r.Context(), caller, ticketID)
	if err != nil {
		writeTicketError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticket)
}

// TicketQR handles GET /api/tickets/{ticketID}/qr and returns a PNG.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	caller := auth.FromContext(r.Context())

	png, err := h.Service.TicketQR(r.Context(), caller, ticketID)
	if err != nil {
		writeTicketError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ListTickets handles GET /api/tickets, scoped by role.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	tickets, err := h.Service.ListTickets(r.Context(), caller)
	if err != nil {
		writeTicketError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}

// ListStudentTickets handles GET /api/students/{studentID}/tickets.
func (h *Handler) ListStudentTickets(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	caller := auth.FromContext(r.Context())

	tickets, err := h.Service.ListStudentTickets(r.Context(), caller, studentID)
	if err != nil {
		writeTicketError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}

// ListEventTickets handles GET /api/events/{eventID}/tickets.
func (h *Handler) ListEventTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	caller := auth.FromContext(r.Context())

	event, err := h.Events.GetEvent(r.Context(), eventID)
	if err != nil {
		utils.WriteFieldError(w, http.StatusNotFound, "event", "Event not found.")
		return
	}

	tickets, err := h.Service.ListEventTickets(r.Context(), caller, event)
	if err != nil {
		writeTicketError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}

func writeTicketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNoTicketsAvailable):
		utils.WriteFieldError(w, http.StatusBadRequest, "event", "No tickets available for this event.")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		utils.WriteFieldError(w, http.StatusBadRequest, "wallet", "Insufficient wallet balance.")
	case errors.Is(err, db.ErrDuplicateTicket):
		utils.WriteFieldError(w, http.StatusBadRequest, "ticket", "Student already has a ticket for this event.")
	case errors.Is(err, db.ErrEventNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "event", "Event not found.")
	case errors.Is(err, db.ErrTicketNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "ticket", "Ticket not found.")
	case errors.Is(err, ledger.ErrStudentNotFound):
		utils.WriteFieldError(w, http.StatusNotFound, "student", "Student not found.")
	case errors.Is(err, authz.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error: "+err.Error(), http.StatusInternalServerError)
	}
}
