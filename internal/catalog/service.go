package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/catalog/db"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateClubName = errors.New("a club with this name already exists")
	// ErrValidation wraps every malformed-input failure; the specific reason
	// is attached at the call site.
	ErrValidation = errors.New("validation failed")
)

type Store interface {
	CreateClub(ctx context.Context, club *models.Club) error
	GetClub(ctx context.Context, id string) (*models.Club, error)
	ListClubs(ctx context.Context) ([]models.Club, error)
	ClubNameExists(ctx context.Context, name, excludeID string) (bool, error)
	UpdateClub(ctx context.Context, club *models.Club) error
	DeleteClub(ctx context.Context, id string) error

	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, id string) error

	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, filter db.EventFilter) ([]models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id string) error

	RoomExists(ctx context.Context, id string) (bool, error)
	ClubExists(ctx context.Context, id string) (bool, error)
}

// EventCache is invalidated after event writes commit. It is advisory only.
type EventCache interface {
	InvalidateEventLists(ctx context.Context)
}

type Service struct {
	DB     Store
	Authz  *authz.Authorizer
	Cache  EventCache
	Logger *logger.Logger
}

func NewService(store Store, az *authz.Authorizer, cache EventCache, log *logger.Logger) *Service {
	return &Service{DB: store, Authz: az, Cache: cache, Logger: log}
}

// ---------------- CLUBS ----------------

func (s *Service) CreateClub(ctx context.Context, caller *auth.Identity, req models.ClubRequest) (*models.Club, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionManageClub, authz.Resource{}); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: club name is required", ErrValidation)
	}
	exists, err := s.DB.ClubNameExists(ctx, req.Name, "")
	if err != nil {
		return nil, fmt.Errorf("check club name: %w", err)
	}
	if exists {
		return nil, ErrDuplicateClubName
	}

	club := &models.Club{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Logo:        req.Logo,
		CreatedAt:   time.Now(),
	}
	if err := s.DB.CreateClub(ctx, club); err != nil {
		return nil, fmt.Errorf("create club: %w", err)
	}
	return club, nil
}

func (s *Service) GetClub(ctx context.Context, id string) (*models.Club, error) {
	club, err := s.DB.GetClub(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return club, nil
}

func (s *Service) ListClubs(ctx context.Context) ([]models.Club, error) {
	return s.DB.ListClubs(ctx)
}

func (s *Service) UpdateClub(ctx context.Context, caller *auth.Identity, id string, req models.ClubRequest) (*models.Club, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionManageClub, authz.Resource{}); err != nil {
		return nil, err
	}

	club, err := s.DB.GetClub(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: club name is required", ErrValidation)
	}
	exists, err := s.DB.ClubNameExists(ctx, req.Name, id)
	if err != nil {
		return nil, fmt.Errorf("check club name: %w", err)
	}
	if exists {
		return nil, ErrDuplicateClubName
	}

	club.Name = req.Name
	club.Description = req.Description
	club.Logo = req.Logo
	if err := s.DB.UpdateClub(ctx, club); err != nil {
		return nil, fmt.Errorf("update club: %w", err)
	}
	return club, nil
}

func (s *Service) DeleteClub(ctx context.Context, caller *auth.Identity, id string) error {
	if err := s.Authz.Can(ctx, caller, authz.ActionManageClub, authz.Resource{}); err != nil {
		return err
	}
	if _, err := s.DB.GetClub(ctx, id); err != nil {
		return ErrNotFound
	}
	if err := s.DB.DeleteClub(ctx, id); err != nil {
		return fmt.Errorf("delete club: %w", err)
	}
	// Club deletion takes its events with it.
	s.invalidateEventCache(ctx)
	return nil
}

// ---------------- ROOMS ----------------

func (s *Service) CreateRoom(ctx context.Context, caller *auth.Identity, req models.RoomRequest) (*models.Room, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionManageRoom, authz.Resource{}); err != nil {
		return nil, err
	}
	if err := validateRoom(req); err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Capacity: req.Capacity,
		Location: req.Location,
		Image:    req.Image,
	}
	if err := s.DB.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.DB.GetRoom(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return room, nil
}

func (s *Service) ListRooms(ctx context.Context) ([]models.Room, error) {
	return s.DB.ListRooms(ctx)
}

func (s *Service) UpdateRoom(ctx context.Context, caller *auth.Identity, id string, req models.RoomRequest) (*models.Room, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionManageRoom, authz.Resource{}); err != nil {
		return nil, err
	}

	room, err := s.DB.GetRoom(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if err := validateRoom(req); err != nil {
		return nil, err
	}

	room.Name = req.Name
	room.Capacity = req.Capacity
	room.Location = req.Location
	room.Image = req.Image
	if err := s.DB.UpdateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}
	return room, nil
}

// DeleteRoom detaches the room from its events rather than deleting them.
func (s *Service) DeleteRoom(ctx context.Context, caller *auth.Identity, id string) error {
	if err := s.Authz.Can(ctx, caller, authz.ActionManageRoom, authz.Resource{}); err != nil {
		return err
	}
	if _, err := s.DB.GetRoom(ctx, id); err != nil {
		return ErrNotFound
	}
	if err := s.DB.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func validateRoom(req models.RoomRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if req.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1", ErrValidation)
	}
	return nil
}

// ---------------- EVENTS ----------------

func (s *Service) CreateEvent(ctx context.Context, caller *auth.Identity, req models.EventRequest) (*models.Event, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionManageEvent, authz.Resource{ClubID: req.ClubID}); err != nil {
		return nil, err
	}
	if err := s.validateEvent(ctx, req); err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		ClubID:       req.ClubID,
		RoomID:       req.RoomID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		TicketType:   req.TicketType,
		TicketPrice:  req.TicketPrice,
		TotalTickets: req.TotalTickets,
		Image:        req.Image,
		CreatedAt:    time.Now(),
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	event.TicketsAvailable = event.TotalTickets

	s.invalidateEventCache(ctx)
	return event, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context, clubID string, upcoming bool) ([]models.Event, error) {
	return s.DB.ListEvents(ctx, db.EventFilter{
		ClubID:   clubID,
		Upcoming: upcoming,
		Now:      time.Now(),
	})
}

func (s *Service) UpdateEvent(ctx context.Context, caller *auth.Identity, id string, req models.EventRequest) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}

	if err := s.Authz.Can(ctx, caller, authz.ActionManageEvent, authz.Resource{ClubID: event.ClubID}); err != nil {
		return nil, err
	}
	req.ClubID = event.ClubID
	if err := s.validateEvent(ctx, req); err != nil {
		return nil, err
	}

	event.Title = req.Title
	event.Description = req.Description
	event.RoomID = req.RoomID
	event.StartDate = req.StartDate
	event.EndDate = req.EndDate
	event.TicketType = req.TicketType
	event.TicketPrice = req.TicketPrice
	event.TotalTickets = req.TotalTickets
	event.Image = req.Image
	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	s.invalidateEventCache(ctx)
	return event, nil
}

func (s *Service) DeleteEvent(ctx context.Context, caller *auth.Identity, id string) error {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return ErrNotFound
	}

	if err := s.Authz.Can(ctx, caller, authz.ActionManageEvent, authz.Resource{ClubID: event.ClubID}); err != nil {
		return err
	}
	if err := s.DB.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	s.invalidateEventCache(ctx)
	return nil
}

func (s *Service) validateEvent(ctx context.Context, req models.EventRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("%w: event title is required", ErrValidation)
	}
	if req.TicketType != models.TicketTypeFree && req.TicketType != models.TicketTypePaid {
		return fmt.Errorf("%w: ticket_type must be 'free' or 'paid'", ErrValidation)
	}
	if req.TicketPrice < 0 {
		return fmt.Errorf("%w: ticket_price cannot be negative", ErrValidation)
	}
	if req.TicketType == models.TicketTypeFree && req.TicketPrice != 0 {
		return fmt.Errorf("%w: free events must have ticket_price 0", ErrValidation)
	}
	if req.TotalTickets < 1 {
		return fmt.Errorf("%w: total_tickets must be at least 1", ErrValidation)
	}
	if !req.EndDate.After(req.StartDate) {
		return fmt.Errorf("%w: end_date must be after start_date", ErrValidation)
	}

	ok, err := s.DB.ClubExists(ctx, req.ClubID)
	if err != nil {
		return fmt.Errorf("check club: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if req.RoomID != "" {
		ok, err := s.DB.RoomExists(ctx, req.RoomID)
		if err != nil {
			return fmt.Errorf("check room: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: room does not exist", ErrValidation)
		}
	}
	return nil
}

func (s *Service) invalidateEventCache(ctx context.Context) {
	if s.Cache != nil {
		s.Cache.InvalidateEventLists(ctx)
	}
}
