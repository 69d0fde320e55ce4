package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/database"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session has expired")
	ErrRegistrationClosed = errors.New("registration is disabled")
)

// Service provides authentication operations.
type Service struct {
	db  *database.DB
	jwt *JWTService
	cfg *config.AuthConfig
}

// NewService creates a new auth service.
func NewService(db *database.DB, cfg *config.AuthConfig) *Service {
	return &Service{
		db:  db,
		jwt: NewJWTService(cfg.JWT),
		cfg: cfg,
	}
}

// JWT returns the token service, for middleware wiring.
func (s *Service) JWT() *JWTService {
	return s.jwt
}

// Register creates a new user account. The first account becomes admin;
// after that registration honors the allow_registration switch.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, *TokenPair, error) {
	hasUsers, err := s.HasUsers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("checking for existing users: %w", err)
	}

	if hasUsers && !s.cfg.AllowRegistration {
		return nil, nil, ErrRegistrationClosed
	}

	if validationErr := ValidatePassword(input.Password, s.cfg.Password); validationErr != nil {
		return nil, nil, fmt.Errorf("password validation: %w", validationErr)
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	existing, existingErr := s.getUserByEmail(ctx, input.Email)
	if existingErr != nil && !errors.Is(existingErr, ErrUserNotFound) {
		return nil, nil, fmt.Errorf("checking existing user: %w", existingErr)
	}
	if existing != nil {
		return nil, nil, ErrUserAlreadyExists
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	role := RoleUser
	if !hasUsers {
		role = RoleAdmin
	}

	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New().String(),
		Email:     input.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if createErr := s.createUser(ctx, user, passwordHash); createErr != nil {
		return nil, nil, fmt.Errorf("creating user: %w", createErr)
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")

	tokens, err := s.createSession(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	return user, tokens, nil
}

// Login authenticates a user and returns tokens.
func (s *Service) Login(ctx context.Context, input LoginInput) (*User, *TokenPair, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	user, passwordHash, err := s.getUserWithPassword(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("getting user: %w", err)
	}

	if verifyErr := VerifyPassword(input.Password, passwordHash); verifyErr != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.createSession(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	log.Info().Str("user_id", user.ID).Msg("User logged in")

	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The old
// session is replaced.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.getSessionByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.deleteSession(ctx, session.ID)
		return nil, ErrSessionExpired
	}
	if session.UserID != userID {
		return nil, ErrInvalidToken
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.deleteSession(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("rotating session: %w", err)
	}

	return s.createSession(ctx, user)
}

// Logout invalidates the session for a refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.getSessionByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return s.deleteSession(ctx, session.ID)
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, role, created_at, updated_at FROM users WHERE id = ?
	`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// HasUsers reports whether any account exists.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	return count > 0, nil
}

func (s *Service) createUser(ctx context.Context, user *User, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Email,
		passwordHash,
		user.Role,
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Service) getUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, role, created_at, updated_at FROM users WHERE email = ?
	`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) getUserWithPassword(ctx context.Context, email string) (*User, string, error) {
	var user User
	var passwordHash, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = ?
	`, email).Scan(&user.ID, &user.Email, &passwordHash, &user.Role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	if user.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, "", fmt.Errorf("parsing created_at: %w", err)
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, "", fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, passwordHash, nil
}

func (s *Service) createSession(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, expiresAt, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	refreshToken, refreshExpiresAt, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		uuid.New().String(),
		user.ID,
		refreshToken,
		refreshExpiresAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

func (s *Service) getSessionByToken(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	var expiresAt, createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, refresh_token, expires_at, created_at
		FROM sessions WHERE refresh_token = ?
	`, refreshToken).Scan(&session.ID, &session.UserID, &session.RefreshToken, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &session, nil
}

func (s *Service) deleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var createdAt, updatedAt string

	err := row.Scan(&user.ID, &user.Email, &user.Role, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.CreatedAt = t

	t, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	user.UpdatedAt = t

	return &user, nil
}
