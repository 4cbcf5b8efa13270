// Package community holds the social features around clubs and events:
// newsletter subscriptions and post-event reviews.
package community

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/community/db"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/models"
)

var (
	ErrClubNotFound          = errors.New("club not found")
	ErrEventNotFound         = errors.New("event not found")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrReviewNotFound        = errors.New("review not found")
	ErrDuplicateSubscription = errors.New("already subscribed to this club")
	ErrDuplicateReview       = errors.New("event already reviewed by this student")
	ErrTicketRequired        = errors.New("a ticket is required to review this event")
	ErrValidation            = errors.New("validation failed")
)

type Store interface {
	GetSubscription(ctx context.Context, userID, clubID string) (*models.Subscription, error)
	GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
	ListClubSubscribers(ctx context.Context, clubID string) ([]models.Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error)
	ClubExists(ctx context.Context, clubID string) (bool, error)
	GetReview(ctx context.Context, id string) (*models.EventReview, error)
	ReviewExists(ctx context.Context, userID, eventID string) (bool, error)
	CreateReview(ctx context.Context, review *models.EventReview) error
	UpdateReview(ctx context.Context, review *models.EventReview) error
	DeleteReview(ctx context.Context, id string) error
	ListEventReviews(ctx context.Context, eventID string) ([]models.EventReview, error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
}

// TicketChecker answers "does this student hold a ticket for this event".
// The ticketing engine implements it.
type TicketChecker interface {
	HasTicket(ctx context.Context, studentID, eventID string) (bool, error)
}

type Service struct {
	DB      Store
	Tickets TicketChecker
	Authz   *authz.Authorizer
	Logger  *logger.Logger
}

func NewService(store Store, tickets TicketChecker, az *authz.Authorizer, log *logger.Logger) *Service {
	return &Service{DB: store, Tickets: tickets, Authz: az, Logger: log}
}

// Subscribe adds the student to a club's newsletter list. Students can only
// subscribe themselves; administrators may subscribe anyone.
func (s *Service) Subscribe(ctx context.Context, caller *auth.Identity, clubID, userID string) (*models.Subscription, error) {
	if userID == "" && caller != nil {
		userID = caller.UserID
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionSubscribe, authz.Resource{OwnerID: userID}); err != nil {
		return nil, err
	}

	exists, err := s.DB.ClubExists(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("check club: %w", err)
	}
	if !exists {
		return nil, ErrClubNotFound
	}
	if _, err := s.DB.GetSubscription(ctx, userID, clubID); err == nil {
		return nil, ErrDuplicateSubscription
	}

	sub := &models.Subscription{
		ID:           uuid.NewString(),
		UserID:       userID,
		ClubID:       clubID,
		SubscribedAt: time.Now(),
	}
	if err := s.DB.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

// Unsubscribe removes a subscription. Allowed for its owner or an
// administrator.
func (s *Service) Unsubscribe(ctx context.Context, caller *auth.Identity, subID string) error {
	sub, err := s.DB.GetSubscriptionByID(ctx, subID)
	if err != nil {
		return ErrSubscriptionNotFound
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionSubscribe, authz.Resource{OwnerID: sub.UserID}); err != nil {
		return err
	}
	return s.DB.DeleteSubscription(ctx, subID)
}

// ListClubSubscribers lists a club's subscribers for administrators and the
// club's heads.
func (s *Service) ListClubSubscribers(ctx context.Context, caller *auth.Identity, clubID string) ([]models.Subscription, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionAddMember, authz.Resource{ClubID: clubID}); err != nil {
		return nil, err
	}
	return s.DB.ListClubSubscribers(ctx, clubID)
}

// ListUserSubscriptions lists a student's subscriptions for the student
// themselves or an administrator.
func (s *Service) ListUserSubscriptions(ctx context.Context, caller *auth.Identity, userID string) ([]models.Subscription, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionSubscribe, authz.Resource{OwnerID: userID}); err != nil {
		return nil, err
	}
	return s.DB.ListUserSubscriptions(ctx, userID)
}

// CreateReview posts a review for an event the caller attended. One review
// per student per event, ratings 1 through 5, ticket holders only.
func (s *Service) CreateReview(ctx context.Context, caller *auth.Identity, eventID string, req *models.ReviewRequest) (*models.EventReview, error) {
	if caller == nil {
		return nil, authz.ErrForbidden
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionWriteReview, authz.Resource{OwnerID: caller.UserID}); err != nil {
		return nil, err
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, ErrEventNotFound
	}

	holds, err := s.Tickets.HasTicket(ctx, caller.UserID, eventID)
	if err != nil {
		return nil, fmt.Errorf("check ticket: %w", err)
	}
	if !holds {
		return nil, ErrTicketRequired
	}

	exists, err := s.DB.ReviewExists(ctx, caller.UserID, eventID)
	if err != nil {
		return nil, fmt.Errorf("check review: %w", err)
	}
	if exists {
		return nil, ErrDuplicateReview
	}

	review := &models.EventReview{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    caller.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if err := s.DB.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// UpdateReview edits a review. Allowed for its author or an administrator.
func (s *Service) UpdateReview(ctx context.Context, caller *auth.Identity, reviewID string, req *models.ReviewRequest) (*models.EventReview, error) {
	review, err := s.DB.GetReview(ctx, reviewID)
	if err != nil {
		return nil, ErrReviewNotFound
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionUpdateReview, authz.Resource{OwnerID: review.UserID}); err != nil {
		return nil, err
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	review.Rating = req.Rating
	review.Comment = req.Comment
	if err := s.DB.UpdateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return review, nil
}

// DeleteReview removes a review. Allowed for its author, an administrator,
// or a head of the event's club.
func (s *Service) DeleteReview(ctx context.Context, caller *auth.Identity, reviewID string) error {
	review, err := s.DB.GetReview(ctx, reviewID)
	if err != nil {
		return ErrReviewNotFound
	}

	res := authz.Resource{OwnerID: review.UserID}
	if review.Event != nil {
		res.ClubID = review.Event.ClubID
	}
	if err := s.Authz.Can(ctx, caller, authz.ActionDeleteReview, res); err != nil {
		return err
	}
	return s.DB.DeleteReview(ctx, reviewID)
}

// ListEventReviews is open to any authenticated caller.
func (s *Service) ListEventReviews(ctx context.Context, eventID string) ([]models.EventReview, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, ErrEventNotFound
	}
	return s.DB.ListEventReviews(ctx, eventID)
}

var _ Store = (*db.DB)(nil)
