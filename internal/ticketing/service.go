// Package ticketing is the purchase engine: it drives the atomic
// availability-check / wallet-debit / ticket-insert transaction and the
// refunding cancel path.
package ticketing

import (
	"context"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/kafka"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/models"
	"ms-clubs/internal/sse"
	"ms-clubs/internal/ticketing/db"
)

type Store interface {
	Purchase(ctx context.Context, studentID, eventID string) (*models.Ticket, error)
	Cancel(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Ticket, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	ListAll(ctx context.Context) ([]models.Ticket, error)
	ListOwnOrHeaded(ctx context.Context, studentID string, headClubIDs []string) ([]models.Ticket, error)
}

// HeadClubLister scopes ticket listings for club heads. The membership
// registry implements it.
type HeadClubLister interface {
	HeadClubIDs(ctx context.Context, userID string) ([]string, error)
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type Service struct {
	DB      Store
	Members HeadClubLister
	Authz   *authz.Authorizer
	Kafka   Publisher
	SSE     *sse.PurchaseEmitter
	Logger  *logger.Logger
}

func NewService(store Store, members HeadClubLister, az *authz.Authorizer, producer Publisher, emitter *sse.PurchaseEmitter, log *logger.Logger) *Service {
	return &Service{DB: store, Members: members, Authz: az, Kafka: producer, SSE: emitter, Logger: log}
}

// Purchase buys one ticket for the caller. Administrators may buy on behalf
// of another student; everyone else only for themselves.
func (s *Service) Purchase(ctx context.Context, caller *auth.Identity, eventID, studentID string) (*models.Ticket, error) {
	if studentID == "" && caller != nil {
		studentID = caller.UserID
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionPurchase, authz.Resource{OwnerID: studentID}); err != nil {
		return nil, err
	}

	ticket, err := s.DB.Purchase(ctx, studentID, eventID)
	if err != nil {
		return nil, err
	}

	s.Logger.LogTicket("PURCHASED", ticket.TicketID, fmt.Sprintf("student %s event %s price %.2f", studentID, eventID, ticket.PricePaid))
	s.publishTicketEvent(kafka.TopicTicketPurchased, ticket)
	s.emit(sse.KindPurchased, ticket)
	return ticket, nil
}

// Cancel deletes the ticket and refunds the event's current price for paid
// events. Allowed for the ticket owner, an administrator, or a head of the
// event's club.
func (s *Service) Cancel(ctx context.Context, caller *auth.Identity, ticketID string) error {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return err
	}

	res := authz.Resource{OwnerID: ticket.StudentID}
	if ticket.Event != nil {
		res.ClubID = ticket.Event.ClubID
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionCancelTicket, res); err != nil {
		return err
	}

	cancelled, err := s.DB.Cancel(ctx, ticketID)
	if err != nil {
		return err
	}

	s.Logger.LogTicket("CANCELLED", ticketID, fmt.Sprintf("student %s event %s", cancelled.StudentID, cancelled.EventID))
	s.publishTicketEvent(kafka.TopicTicketCancelled, cancelled)
	s.emit(sse.KindCancelled, cancelled)
	return nil
}

// GetTicket returns a single ticket, visible to its owner, an administrator
// or a head of the event's club.
func (s *Service) GetTicket(ctx context.Context, caller *auth.Identity, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	res := authz.Resource{OwnerID: ticket.StudentID}
	if ticket.Event != nil {
		res.ClubID = ticket.Event.ClubID
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionViewTicket, res); err != nil {
		return nil, err
	}
	return ticket, nil
}

// TicketQR renders the ticket's entry pass as a PNG.
func (s *Service) TicketQR(ctx context.Context, caller *auth.Identity, ticketID string) ([]byte, error) {
	ticket, err := s.GetTicket(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}
	payload := fmt.Sprintf("ticket:%s|event:%s|student:%s", ticket.TicketID, ticket.EventID, ticket.StudentID)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// ListTickets returns every ticket the caller may see: administrators see
// all, club heads see their own plus their clubs' events, everyone else only
// their own.
func (s *Service) ListTickets(ctx context.Context, caller *auth.Identity) ([]models.Ticket, error) {
	if caller == nil {
		return nil, authz.ErrForbidden
	}
	if caller.IsAdmin {
		return s.DB.ListAll(ctx)
	}

	headClubs, err := s.Members.HeadClubIDs(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("head clubs: %w", err)
	}
	return s.DB.ListOwnOrHeaded(ctx, caller.UserID, headClubs)
}

// ListEventTickets lists an event's tickets for administrators and heads of
// the event's club; other callers get only their own ticket for the event.
func (s *Service) ListEventTickets(ctx context.Context, caller *auth.Identity, event *models.Event) ([]models.Ticket, error) {
	if caller == nil {
		return nil, authz.ErrForbidden
	}
	err := s.Authz.Can(ctx, caller, authz.ActionViewTicket, authz.Resource{ClubID: event.ClubID})
	if err == nil {
		return s.DB.ListByEvent(ctx, event.ID)
	}

	all, err := s.DB.ListByStudent(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	own := make([]models.Ticket, 0, 1)
	for _, t := range all {
		if t.EventID == event.ID {
			own = append(own, t)
		}
	}
	return own, nil
}

// ListStudentTickets lists one student's tickets, guarded by the
// student-view rule.
func (s *Service) ListStudentTickets(ctx context.Context, caller *auth.Identity, studentID string) ([]models.Ticket, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionViewStudent, authz.Resource{OwnerID: studentID}); err != nil {
		return nil, err
	}
	return s.DB.ListByStudent(ctx, studentID)
}

// HasTicket reports whether the student holds a ticket for the event. The
// review rules depend on it.
func (s *Service) HasTicket(ctx context.Context, studentID, eventID string) (bool, error) {
	tickets, err := s.DB.ListByStudent(ctx, studentID)
	if err != nil {
		return false, err
	}
	for _, t := range tickets {
		if t.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) emit(kind string, ticket *models.Ticket) {
	if s.SSE == nil || ticket.Event == nil {
		return
	}
	s.SSE.Emit(sse.PurchaseEvent{
		Kind:   kind,
		ClubID: ticket.Event.ClubID,
		Ticket: *ticket,
	})
}

func (s *Service) publishTicketEvent(topic string, ticket *models.Ticket) {
	if s.Kafka == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"ticket_id":  ticket.TicketID,
		"student_id": ticket.StudentID,
		"event_id":   ticket.EventID,
		"price_paid": ticket.PricePaid,
	})
	if err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("ticket event: marshal payload: %v", err))
		return
	}
	if err := s.Kafka.Publish(topic, ticket.TicketID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("ticket event: publish to %s failed: %v", topic, err))
	}
}

var _ Store = (*db.DB)(nil)
