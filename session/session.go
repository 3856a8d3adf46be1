package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-elife-client/api"
	"go-elife-client/models"
	"go-elife-client/securestore"

	"github.com/golang-jwt/jwt/v4"
)

const (
	ERR_PENSIONER_NUMBER_FORMAT = "pensioner number must be in the format 000-000-0000"
	ERR_PASSWORD_TOO_SHORT      = "password must be at least 8 characters"
	ERR_LOGIN_FAILED            = "login failed"

	minPasswordLength = 8
)

var pensionerNumberPattern = regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`)

// ErrNotAuthenticated is returned when no valid (present, decodable, unexpired) token is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// ValidationError reports a credential that was rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Claims is the subset of the backend token payload the client reads.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// Backend is the part of the API the session needs.
type Backend interface {
	Login(ctx context.Context, request models.LoginRequest) (*models.LoginResponse, error)
	AcceptTerms(ctx context.Context, token string) error
}

type Manager struct {
	backend Backend
	store   securestore.Store
	now     func() time.Time
}

func NewManager(backend Backend, store securestore.Store) *Manager {
	return &Manager{
		backend: backend,
		store:   store,
		now:     time.Now,
	}
}

// ValidateCredentials checks the local format rules for a login attempt.
func ValidateCredentials(pensionerNumber, password string) error {
	if !pensionerNumberPattern.MatchString(pensionerNumber) {
		return &ValidationError{Field: "pensioner_number", Message: ERR_PENSIONER_NUMBER_FORMAT}
	}
	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: ERR_PASSWORD_TOO_SHORT}
	}
	return nil
}

// Login authenticates against the backend and persists the returned token.
func (m *Manager) Login(ctx context.Context, pensionerNumber, password string) (*Claims, error) {
	if err := ValidateCredentials(pensionerNumber, password); err != nil {
		return nil, err
	}

	response, err := m.backend.Login(ctx, models.LoginRequest{
		PensionerNumber: strings.ReplaceAll(pensionerNumber, "-", ""),
		Password:        password,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ERR_LOGIN_FAILED, err)
	}

	claims, err := parseClaims(response.Token)
	if err != nil {
		return nil, fmt.Errorf("%s: received unreadable token: %w", ERR_LOGIN_FAILED, err)
	}

	if err := m.store.Set(ctx, securestore.KeyJWT, response.Token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	if claims.UserID != 0 {
		if err := m.store.Set(ctx, securestore.KeyUserId, strconv.Itoa(claims.UserID)); err != nil {
			return nil, fmt.Errorf("failed to store user id: %w", err)
		}
	}

	slog.Info("Logged in", "user_id", claims.UserID)
	return claims, nil
}

// Token returns the stored token when it is present, decodable and not expired.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, err := m.store.Get(ctx, securestore.KeyJWT)
	if errors.Is(err, securestore.ErrNotFound) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return "", ErrNotAuthenticated
	}

	claims, err := parseClaims(token)
	if err != nil {
		slog.Debug("Stored token cannot be decoded", "error", err)
		return "", ErrNotAuthenticated
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(m.now()) {
		slog.Debug("Stored token expired")
		return "", ErrNotAuthenticated
	}
	return token, nil
}

// Claims returns the claims of the stored valid token.
func (m *Manager) Claims(ctx context.Context) (*Claims, error) {
	token, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}
	return parseClaims(token)
}

func (m *Manager) IsLoggedIn(ctx context.Context) bool {
	_, err := m.Token(ctx)
	return err == nil
}

// Logout removes the token and cached user id.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx, securestore.KeyJWT); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if err := m.store.Delete(ctx, securestore.KeyUserId); err != nil {
		return fmt.Errorf("failed to delete user id: %w", err)
	}
	slog.Info("Logged out")
	return nil
}

// AcceptTerms records acceptance locally and tells the backend. The backend
// call is best effort: a failure is logged and the local flag is kept.
func (m *Manager) AcceptTerms(ctx context.Context) error {
	if err := m.store.Set(ctx, securestore.KeyTermsAccepted, "true"); err != nil {
		return fmt.Errorf("failed to store terms acceptance: %w", err)
	}

	token, err := m.Token(ctx)
	if err != nil {
		slog.Warn("Terms accepted locally without a session", "error", err)
		return nil
	}
	if err := m.backend.AcceptTerms(ctx, token); err != nil {
		slog.Warn("Failed to record terms acceptance on backend", "error", err, "message", api.ServerMessage(err))
	}
	return nil
}

func (m *Manager) TermsAccepted(ctx context.Context) (bool, error) {
	value, err := m.store.Get(ctx, securestore.KeyTermsAccepted)
	if errors.Is(err, securestore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

// parseClaims decodes the token payload without verifying the signature;
// the backend remains the authority on validity.
func parseClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
