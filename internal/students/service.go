// Package students covers the account lifecycle: registration with email
// verification, login, profile updates and administrator wallet top-ups.
package students

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/kafka"
	"ms-clubs/internal/ledger"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/models"
	"ms-clubs/internal/students/db"
)

const verificationTTL = 24 * time.Hour

var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidCode        = errors.New("verification code not found")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrValidation         = errors.New("validation failed")
)

type Store interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByUsername(ctx context.Context, username string) (*models.Student, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	ListAll(ctx context.Context) ([]models.Student, error)
	CreateVerification(ctx context.Context, v *models.EmailVerification) error
	GetVerification(ctx context.Context, code string) (*models.EmailVerification, error)
	MarkVerified(ctx context.Context, code, userID string) error
	MarkExpired(ctx context.Context, code string) error
	Credit(ctx context.Context, studentID string, amount float64) error
	HeadsClubOf(ctx context.Context, headID, studentID string) (bool, error)
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type Service struct {
	DB        Store
	Authz     *authz.Authorizer
	Kafka     Publisher
	Logger    *logger.Logger
	JWTSecret string
	TokenTTL  time.Duration
}

func NewService(store Store, az *authz.Authorizer, producer Publisher, log *logger.Logger, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		DB:        store,
		Authz:     az,
		Kafka:     producer,
		Logger:    log,
		JWTSecret: jwtSecret,
		TokenTTL:  tokenTTL,
	}
}

// Register creates an unverified account with a zero wallet and queues the
// verification email.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Student, error) {
	if err := s.validateRegistration(ctx, req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	student := &models.Student{
		ID:            uuid.NewString(),
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  hash,
		Faculty:       req.Faculty,
		Speciality:    req.Speciality,
		WalletBalance: 0,
		CreatedAt:     time.Now(),
	}
	if err := s.DB.Create(ctx, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	verification := &models.EmailVerification{
		Code:       uuid.NewString(),
		UserID:     student.ID,
		Status:     models.VerificationPending,
		CreatedAt:  time.Now(),
		Expiration: time.Now().Add(verificationTTL),
	}
	if err := s.DB.CreateVerification(ctx, verification); err != nil {
		return nil, fmt.Errorf("create verification: %w", err)
	}

	s.Logger.LogSecurity("REGISTERED", fmt.Sprintf("student %s (%s)", student.Username, student.ID))
	s.publishVerificationEmail(student, verification)
	return student, nil
}

// Login checks the password and issues a signed token.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	student, err := s.DB.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(student.PasswordHash, req.Password) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad password for %s", req.Username))
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := auth.IssueToken(s.JWTSecret, student.ID, student.IsAdmin, s.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// VerifyEmail consumes a pending verification code.
func (s *Service) VerifyEmail(ctx context.Context, code string) error {
	v, err := s.DB.GetVerification(ctx, code)
	if err != nil {
		return ErrInvalidCode
	}
	if v.Status == models.VerificationVerified {
		return nil
	}
	if v.Status == models.VerificationExpired || v.IsExpired(time.Now()) {
		if v.Status != models.VerificationExpired {
			if err := s.DB.MarkExpired(ctx, code); err != nil {
				s.Logger.Warn("DATABASE", fmt.Sprintf("mark verification expired: %v", err))
			}
		}
		return ErrCodeExpired
	}
	return s.DB.MarkVerified(ctx, code, v.UserID)
}

// GetStudent returns a profile, visible to the student themselves, an
// administrator, or a head of one of the student's clubs.
func (s *Service) GetStudent(ctx context.Context, caller *auth.Identity, studentID string) (*models.Student, error) {
	if caller == nil {
		return nil, authz.ErrForbidden
	}
	if !caller.IsAdmin && caller.UserID != studentID {
		heads, err := s.DB.HeadsClubOf(ctx, caller.UserID, studentID)
		if err != nil {
			return nil, fmt.Errorf("head lookup: %w", err)
		}
		if !heads {
			return nil, authz.ErrForbidden
		}
	}

	student, err := s.DB.GetByID(ctx, studentID)
	if err != nil {
		return nil, ErrStudentNotFound
	}
	return student, nil
}

// UpdateStudent applies a partial profile update for the student themselves
// or an administrator.
func (s *Service) UpdateStudent(ctx context.Context, caller *auth.Identity, studentID string, req *models.UpdateStudentRequest) (*models.Student, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionUpdateStudent, authz.Resource{OwnerID: studentID}); err != nil {
		return nil, err
	}

	student, err := s.DB.GetByID(ctx, studentID)
	if err != nil {
		return nil, ErrStudentNotFound
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, student.Email) {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			return nil, fmt.Errorf("%w: invalid email", ErrValidation)
		}
		taken, err := s.DB.EmailExists(ctx, *req.Email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, ErrDuplicateEmail
		}
		student.Email = *req.Email
		student.IsEmailVerified = false
	}
	if req.Faculty != nil {
		student.Faculty = *req.Faculty
	}
	if req.Speciality != nil {
		student.Speciality = *req.Speciality
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		student.PasswordHash = hash
	}

	if err := s.DB.Update(ctx, student); err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	return student, nil
}

// TopUp credits a student's wallet. Administrators only.
func (s *Service) TopUp(ctx context.Context, caller *auth.Identity, studentID string, amount float64) (*models.Student, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionTopUpWallet, authz.Resource{OwnerID: studentID}); err != nil {
		return nil, err
	}
	if err := s.DB.Credit(ctx, studentID, amount); err != nil {
		if errors.Is(err, ledger.ErrStudentNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	student, err := s.DB.GetByID(ctx, studentID)
	if err != nil {
		return nil, ErrStudentNotFound
	}
	s.Logger.Info("WALLET", fmt.Sprintf("topped up %s by %.2f, balance now %.2f", studentID, amount, student.WalletBalance))
	return student, nil
}

// ListStudents is an administrator-only roster dump.
func (s *Service) ListStudents(ctx context.Context, caller *auth.Identity) ([]models.Student, error) {
	if err := s.Authz.Can(ctx, caller, authz.ActionListStudents, authz.Resource{}); err != nil {
		return nil, err
	}
	return s.DB.ListAll(ctx)
}

func (s *Service) validateRegistration(ctx context.Context, req *models.RegisterRequest) error {
	if req.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(req.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if req.Password != req.Password2 {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	taken, err := s.DB.UsernameExists(ctx, req.Username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return ErrDuplicateUsername
	}
	taken, err = s.DB.EmailExists(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return ErrDuplicateEmail
	}
	return nil
}

func (s *Service) publishVerificationEmail(student *models.Student, v *models.EmailVerification) {
	if s.Kafka == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"username": student.Username,
		"email":    student.Email,
		"code":     v.Code,
	})
	if err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("verification email: marshal payload: %v", err))
		return
	}
	if err := s.Kafka.Publish(kafka.TopicEmailVerification, student.ID, payload); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("verification email: publish failed: %v", err))
	}
}

var _ Store = (*db.DB)(nil)
