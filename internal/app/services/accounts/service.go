// Package accounts registers users, issues tokens and manages student and
// teacher profiles.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/pkg/logger"
)

// TaskWelcomeEmail is the background job sent after registration.
const TaskWelcomeEmail = "accounts.send_welcome_email"

// RegisterInput carries the fields shared by both registration forms.
type RegisterInput struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	PhoneNumber    string `json:"phone_number"`
	University     int64  `json:"university"`
	EducationStudy int64  `json:"education_study,omitempty"`
}

// WelcomeArgs are the welcome email task arguments.
type WelcomeArgs struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Username string `json:"username"`
}

// Service owns user lifecycle operations.
type Service struct {
	users  storage.UserStore
	tokens *auth.Tokens
	queue  tasks.Enqueuer
	audit  audit.Recorder
	cache  cache.Cache
	log    *logger.Logger
	now    func() time.Time
}

// New creates an accounts service. queue may be nil, in which case no
// welcome email is sent.
func New(users storage.UserStore, tokens *auth.Tokens, queue tasks.Enqueuer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{users: users, tokens: tokens, queue: queue, log: log, now: time.Now}
}

// RegisterStudent creates a student account with its profile.
func (s *Service) RegisterStudent(ctx context.Context, in RegisterInput) (account.User, error) {
	user, err := s.prepare(ctx, in, account.RoleStudent)
	if err != nil {
		return account.User{}, err
	}
	if in.EducationStudy == 0 {
		return account.User{}, apperrors.Validation("education_study", "This field is required.")
	}
	if _, err := s.users.GetEducationStudy(ctx, in.EducationStudy); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.User{}, apperrors.Validation("education_study", "EducationStudy not found.")
		}
		return account.User{}, err
	}

	created, err := s.users.RegisterStudent(ctx, user, account.Student{
		UniversityID:     in.University,
		EducationStudyID: in.EducationStudy,
	})
	if err != nil {
		return account.User{}, s.registrationError(err)
	}
	s.sendWelcome(ctx, created, "EduShopX")
	return created, nil
}

// RegisterTeacher creates a teacher account linked to one university.
func (s *Service) RegisterTeacher(ctx context.Context, in RegisterInput) (account.User, error) {
	user, err := s.prepare(ctx, in, account.RoleTeacher)
	if err != nil {
		return account.User{}, err
	}
	created, err := s.users.RegisterTeacher(ctx, user, account.Teacher{UniversityIDs: []int64{in.University}})
	if err != nil {
		return account.User{}, s.registrationError(err)
	}
	s.sendWelcome(ctx, created, "Welcome")
	return created, nil
}

// prepare validates the shared registration fields and hashes the password.
func (s *Service) prepare(ctx context.Context, in RegisterInput, role account.Role) (account.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	required := []struct{ field, value string }{
		{"username", in.Username},
		{"password", in.Password},
		{"email", in.Email},
		{"first_name", strings.TrimSpace(in.FirstName)},
		{"last_name", strings.TrimSpace(in.LastName)},
		{"phone_number", in.PhoneNumber},
	}
	for _, r := range required {
		if r.value == "" {
			return account.User{}, apperrors.Validation(r.field, "This field is required.")
		}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return account.User{}, apperrors.Validation("email", "Enter a valid email address.")
	}
	if !account.PhonePattern.MatchString(in.PhoneNumber) {
		return account.User{}, apperrors.Validation("phone_number", "Mobile number is not valid.")
	}
	if in.University == 0 {
		return account.User{}, apperrors.Validation("university", "This field is required.")
	}

	if taken, err := s.exists(ctx, s.users.GetUserByUsername, in.Username); err != nil {
		return account.User{}, err
	} else if taken {
		return account.User{}, apperrors.Validation("username", "This username has already been used.")
	}
	if taken, err := s.exists(ctx, s.users.GetUserByEmail, in.Email); err != nil {
		return account.User{}, err
	} else if taken {
		return account.User{}, apperrors.Validation("email", "This email has already been registered.")
	}
	if taken, err := s.exists(ctx, s.users.GetUserByPhone, in.PhoneNumber); err != nil {
		return account.User{}, err
	} else if taken {
		return account.User{}, apperrors.Validation("phone_number", "This phone number is already registered.")
	}
	if _, err := s.users.GetUniversity(ctx, in.University); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.User{}, apperrors.Validation("university", "University not found.")
		}
		return account.User{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return account.User{}, err
	}
	return account.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PhoneNumber:  in.PhoneNumber,
		Role:         role,
		IsActive:     true,
		DateJoined:   s.now().UTC(),
	}, nil
}

func (s *Service) exists(ctx context.Context, get func(context.Context, string) (account.User, error), value string) (bool, error) {
	_, err := get(ctx, value)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// registrationError maps a store race on a unique column to a 400.
func (s *Service) registrationError(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.BadRequest("A user with these details already exists.")
	}
	return fmt.Errorf("register user: %w", err)
}

func (s *Service) sendWelcome(ctx context.Context, user account.User, subject string) {
	if s.queue == nil {
		return
	}
	args := WelcomeArgs{To: user.Email, Subject: subject, Username: user.Username}
	if _, err := s.queue.Enqueue(ctx, TaskWelcomeEmail, args); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("enqueue welcome email")
	}
}

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks credentials and returns a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	invalid := apperrors.Unauthorized("No active account found with the given credentials")
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return auth.TokenPair{}, invalid
		}
		return auth.TokenPair{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil || !user.IsActive {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"username": user.Username})
		return auth.TokenPair{}, invalid
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.users.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("update last login")
	}
	return pair, nil
}

// Refresh rotates a refresh token.
func (s *Service) Refresh(ctx context.Context, refresh string) (auth.TokenPair, error) {
	if strings.TrimSpace(refresh) == "" {
		return auth.TokenPair{}, apperrors.Validation("refresh", "This field is required.")
	}
	return s.tokens.Refresh(ctx, refresh, s.users.GetUser)
}

// Verify accepts any valid, unrevoked token.
func (s *Service) Verify(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return apperrors.Validation("token", "This field is required.")
	}
	_, err := s.tokens.Parse(ctx, token, "")
	return err
}

// Blacklist revokes a refresh token. Logout uses the same operation.
func (s *Service) Blacklist(ctx context.Context, refresh string) error {
	if strings.TrimSpace(refresh) == "" {
		return apperrors.Validation("refresh", "This field is required.")
	}
	return s.tokens.Revoke(ctx, refresh)
}

// CreateSuperuser creates an active staff account without a profile. It
// backs the createsuperuser command.
func (s *Service) CreateSuperuser(ctx context.Context, username, email, password string) (account.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return account.User{}, apperrors.Validation("username", "This field is required.")
	}
	if password == "" {
		return account.User{}, apperrors.Validation("password", "This field is required.")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return account.User{}, apperrors.Validation("email", "Enter a valid email address.")
		}
	}
	if taken, err := s.exists(ctx, s.users.GetUserByUsername, username); err != nil {
		return account.User{}, err
	} else if taken {
		return account.User{}, apperrors.Validation("username", "This username has already been used.")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return account.User{}, err
	}
	created, err := s.users.CreateUser(ctx, account.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
		DateJoined:   s.now().UTC(),
	})
	if err != nil {
		return account.User{}, s.registrationError(err)
	}
	s.log.WithField("user_id", created.ID).Info("superuser created")
	return created, nil
}
