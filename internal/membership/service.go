package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/kafka"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/membership/db"
	"ms-clubs/internal/models"
)

var (
	ErrDuplicateMembership = errors.New("user is already a member of this club")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrClubNotFound        = errors.New("club not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrInvalidRole         = errors.New("role must be 'member' or 'head'")
)

type Store interface {
	IsHead(ctx context.Context, userID, clubID string) (bool, error)
	GetMembership(ctx context.Context, userID, clubID string) (*models.ClubMember, error)
	GetMembershipByID(ctx context.Context, id string) (*models.ClubMember, error)
	CreateMembership(ctx context.Context, m *models.ClubMember) error
	UpdateRole(ctx context.Context, id, role string) error
	DeleteMembership(ctx context.Context, id string) error
	ListByClub(ctx context.Context, clubID string) ([]models.ClubMember, error)
	ListByUser(ctx context.Context, userID string) ([]models.ClubMember, error)
	HeadClubIDs(ctx context.Context, userID string) ([]string, error)
	ClubExists(ctx context.Context, clubID string) (bool, error)
	GetClub(ctx context.Context, clubID string) (*models.Club, error)
	GetStudent(ctx context.Context, userID string) (*models.Student, error)
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service is the membership registry: it tracks club memberships and roles
// and answers the head queries the authorizer depends on.
type Service struct {
	DB     Store
	Authz  *authz.Authorizer
	Kafka  Publisher
	Logger *logger.Logger
}

func NewService(store Store, az *authz.Authorizer, producer Publisher, log *logger.Logger) *Service {
	return &Service{DB: store, Authz: az, Kafka: producer, Logger: log}
}

// AddMember joins a user to a club. Assigning the head role requires an
// administrator; club heads may only add plain members.
func (s *Service) AddMember(ctx context.Context, caller *auth.Identity, clubID, userID, role string) (*models.ClubMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleHead {
		return nil, ErrInvalidRole
	}

	if err := s.Authz.Can(ctx, caller, authz.ActionAddMember, authz.Resource{ClubID: clubID}); err != nil {
		return nil, err
	}
	if role == models.RoleHead && !caller.IsAdmin {
		return nil, authz.ErrForbidden
	}

	if err := s.requireClubAndStudent(ctx, clubID, userID); err != nil {
		return nil, err
	}

	if existing, err := s.DB.GetMembership(ctx, userID, clubID); err == nil && existing != nil {
		return nil, ErrDuplicateMembership
	}

	m := &models.ClubMember{
		ID:       uuid.NewString(),
		UserID:   userID,
		ClubID:   clubID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	if err := s.DB.CreateMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.publishMemberJoined(ctx, m)
	return m, nil
}

// AssignHead creates a head membership or promotes an existing one.
// The returned flag is true when a new membership row was created, which the
// API maps to 201 vs 200. The returned membership carries the student and
// club so the API can name them in its response.
func (s *Service) AssignHead(ctx context.Context, caller *auth.Identity, clubID, userID string) (*models.ClubMember, bool, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionAssignHead, authz.Resource{ClubID: clubID}); err != nil {
		return nil, false, err
	}

	club, err := s.DB.GetClub(ctx, clubID)
	if err != nil {
		return nil, false, ErrClubNotFound
	}
	student, err := s.DB.GetStudent(ctx, userID)
	if err != nil {
		return nil, false, ErrStudentNotFound
	}

	existing, err := s.DB.GetMembership(ctx, userID, clubID)
	if err == nil && existing != nil {
		if existing.Role != models.RoleHead {
			if err := s.DB.UpdateRole(ctx, existing.ID, models.RoleHead); err != nil {
				return nil, false, fmt.Errorf("promote to head: %w", err)
			}
			existing.Role = models.RoleHead
		}
		existing.User = student
		existing.Club = club
		return existing, false, nil
	}

	m := &models.ClubMember{
		ID:       uuid.NewString(),
		UserID:   userID,
		ClubID:   clubID,
		Role:     models.RoleHead,
		JoinedAt: time.Now(),
		User:     student,
		Club:     club,
	}
	if err := s.DB.CreateMembership(ctx, m); err != nil {
		return nil, false, fmt.Errorf("create head membership: %w", err)
	}
	return m, true, nil
}

// RemoveMember deletes a membership. Allowed for administrators and heads of
// the membership's club.
func (s *Service) RemoveMember(ctx context.Context, caller *auth.Identity, membershipID string) error {
	m, err := s.DB.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return ErrMembershipNotFound
	}

	if err := s.Authz.Can(ctx, caller, authz.ActionRemoveMember, authz.Resource{ClubID: m.ClubID}); err != nil {
		return err
	}

	if err := s.DB.DeleteMembership(ctx, membershipID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// ChangeRole updates a membership's role. Promotion to head is admin-only;
// other changes are allowed for admins and heads of the club.
func (s *Service) ChangeRole(ctx context.Context, caller *auth.Identity, membershipID, role string) (*models.ClubMember, error) {
	if role != models.RoleMember && role != models.RoleHead {
		return nil, ErrInvalidRole
	}

	m, err := s.DB.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, ErrMembershipNotFound
	}

	if err := s.Authz.Can(ctx, caller, authz.ActionRemoveMember, authz.Resource{ClubID: m.ClubID}); err != nil {
		return nil, err
	}
	if role == models.RoleHead && !caller.IsAdmin {
		return nil, authz.ErrForbidden
	}

	if err := s.DB.UpdateRole(ctx, membershipID, role); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	m.Role = role
	return m, nil
}

func (s *Service) ListClubMembers(ctx context.Context, clubID string) ([]models.ClubMember, error) {
	ok, err := s.DB.ClubExists(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("check club: %w", err)
	}
	if !ok {
		return nil, ErrClubNotFound
	}
	return s.DB.ListByClub(ctx, clubID)
}

// ListUserMemberships applies the visibility scope: a caller sees their own
// memberships, administrators see all, and club heads see memberships of
// their own clubs only.
func (s *Service) ListUserMemberships(ctx context.Context, caller *auth.Identity, userID string) ([]models.ClubMember, error) {
	memberships, err := s.DB.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	if caller.IsAdmin || caller.UserID == userID {
		return memberships, nil
	}

	headClubs, err := s.DB.HeadClubIDs(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("head clubs: %w", err)
	}
	headSet := make(map[string]bool, len(headClubs))
	for _, id := range headClubs {
		headSet[id] = true
	}

	scoped := memberships[:0]
	for _, m := range memberships {
		if headSet[m.ClubID] {
			scoped = append(scoped, m)
		}
	}
	return scoped, nil
}

func (s *Service) requireClubAndStudent(ctx context.Context, clubID, userID string) error {
	ok, err := s.DB.ClubExists(ctx, clubID)
	if err != nil {
		return fmt.Errorf("check club: %w", err)
	}
	if !ok {
		return ErrClubNotFound
	}
	if _, err := s.DB.GetStudent(ctx, userID); err != nil {
		return ErrStudentNotFound
	}
	return nil
}

// publishMemberJoined fires the congrats-email request. Delivery is outside
// the correctness contract; failures are only logged.
func (s *Service) publishMemberJoined(ctx context.Context, m *models.ClubMember) {
	if s.Kafka == nil {
		return
	}
	student, err := s.DB.GetStudent(ctx, m.UserID)
	if err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("member joined: failed to load student %s: %v", m.UserID, err))
		return
	}

	payload, err := json.Marshal(map[string]string{
		"username": student.Username,
		"email":    student.Email,
		"club_id":  m.ClubID,
	})
	if err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("member joined: marshal payload: %v", err))
		return
	}

	if err := s.Kafka.Publish(kafka.TopicMemberJoined, m.UserID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("member joined: publish failed: %v", err))
	}
}

var _ authz.HeadChecker = (*db.DB)(nil)
