package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 50
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
	// CreateAdmin bootstraps an administrator; it is not reachable over HTTP.
	CreateAdmin(ctx context.Context, input RegisterInput) (*models.User, error)
}

type RegisterInput struct {
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	Password    string          `json:"password"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	PhoneNumber *string         `json:"phone_number"`
	Department  *string         `json:"department"`
	Role        models.UserRole `json:"role"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authService struct {
	store             repositories.Store
	bcryptCost        int
	defaultTotalSlots int
	logger            *slog.Logger
}

func NewAuthService(store repositories.Store, bcryptCost, defaultTotalSlots int, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &authService{
		store:             store,
		bcryptCost:        bcryptCost,
		defaultTotalSlots: defaultTotalSlots,
		logger:            logger,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if input.Role == "" {
		input.Role = models.RoleStudent
	}
	if input.Role != models.RoleStudent && input.Role != models.RoleTeacher {
		return nil, fmt.Errorf("%w: role must be student or teacher", ErrValidationFailed)
	}
	return s.create(ctx, input)
}

func (s *authService) CreateAdmin(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Role = models.RoleAdmin
	return s.create(ctx, input)
}

func (s *authService) create(ctx context.Context, input RegisterInput) (*models.User, error) {
	user, err := newUserFromInput(input)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashedPassword)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return translateRepoError(err)
		}
		if user.Role != models.RoleTeacher {
			return nil
		}
		profile := &models.ProfessorProfile{UserID: user.ID, TotalSlots: s.defaultTotalSlots}
		if err := tx.Professors().Create(ctx, profile); err != nil {
			return fmt.Errorf("failed to create professor profile: %w", translateRepoError(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", slog.Int("user_id", user.ID), slog.String("role", string(user.Role)))
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

func newUserFromInput(input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be 1..%d characters", ErrValidationFailed, maxUsernameLength)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidationFailed, minPasswordLength)
	}
	return &models.User{
		Username:    username,
		Email:       email,
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		PhoneNumber: trimmedOrNil(input.PhoneNumber),
		Department:  trimmedOrNil(input.Department),
		Role:        input.Role,
	}, nil
}
