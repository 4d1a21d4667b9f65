package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
)

const (
	defaultBcryptCost = 12
	minPasswordLength = 8
)

// UserEvents publishes account lifecycle events.
type UserEvents interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
}

// AuthService implements registration, login and token rotation.
type AuthService struct {
	users      repository.UserRepository
	tokens     repository.RefreshTokenRepository
	jwtManager *auth.JWTManager
	events     UserEvents
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

type AuthOption func(*AuthService)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

func WithUserEvents(e UserEvents) AuthOption {
	return func(s *AuthService) { s.events = e }
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	jwtManager *auth.JWTManager,
	l *slog.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		users:      users,
		tokens:     tokens,
		jwtManager: jwtManager,
		logger:     l,
		bcryptCost: defaultBcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput is a signup. An empty Role registers a customer.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

type LoginInput struct {
	Email    string
	Password string
}

type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

// Register creates a customer account and returns it with a fresh token pair.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	email := normalizeEmail(input.Email)
	switch {
	case email == "":
		return nil, nil, apperrors.InvalidInput("email is required")
	case strings.TrimSpace(input.FirstName) == "":
		return nil, nil, apperrors.InvalidInput("first name is required")
	case strings.TrimSpace(input.LastName) == "":
		return nil, nil, apperrors.InvalidInput("last name is required")
	}
	role := input.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !domain.IsSelfAssignableRole(role) {
		return nil, nil, apperrors.InvalidInput("role must be customer or seller")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         role,
		IsActive:     true,
		Wishlist:     []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, nil, apperrors.AlreadyExists("user", "email", email)
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	log := logger.WithContext(ctx, s.logger)
	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, user); err != nil {
			log.ErrorContext(ctx, "failed to publish user.registered event",
				slog.String("user_id", user.ID),
				logger.Err(err),
			)
		}
	}

	log.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, tokens, nil
}

// Login checks credentials and returns the user with a fresh token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}
	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("account is deactivated")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token is revoked, so each refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	hash := hashToken(refreshToken)
	stored, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("refresh token not recognized")
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if stored.RevokedAt != nil {
		return nil, apperrors.Unauthorized("refresh token has been revoked")
	}
	if s.now().After(stored.ExpiresAt) {
		return nil, apperrors.Unauthorized("refresh token has expired")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("account no longer exists")
		}
		return nil, fmt.Errorf("get user for refresh: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("account is deactivated")
	}

	if err := s.tokens.Revoke(ctx, hash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes every refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err, userID, "get profile")
	}
	return user, nil
}

// UpdateProfile changes the name fields that are set in input.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err, userID, "get user for update")
	}

	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			return nil, apperrors.InvalidInput("first name must not be empty")
		}
		user.FirstName = name
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		if name == "" {
			return nil, apperrors.InvalidInput("last name must not be empty")
		}
		user.LastName = name
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, userLookupError(err, userID, "update user")
	}
	return user, nil
}

// ChangePassword replaces the password and revokes all refresh tokens.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	if current == next {
		return apperrors.InvalidInput("new password must differ from the current one")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return userLookupError(err, userID, "get user for password change")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.tokens.RevokeByUserID(ctx, userID); err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "failed to revoke refresh tokens after password change",
			slog.String("user_id", userID),
			logger.Err(err),
		)
	}
	return nil
}

// issueTokens signs an access/refresh pair and stores the refresh token hash.
func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, expiresAt, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.Create(ctx, user.ID, hashToken(refresh), expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// hashToken returns the hex SHA-256 of token. Only hashes are persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain an uppercase letter, a lowercase letter and a digit")
	}
	return nil
}
