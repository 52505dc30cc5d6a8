// Package service implements registration and authentication on top of the
// user store, the password hasher, and the token issuer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/asaskevich/govalidator"

	"accessops/internal/identity"
	"accessops/internal/identity/store"
	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
	"accessops/pkg/platform/sentinel"
	"accessops/pkg/requestcontext"
	"accessops/pkg/secrets"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, role string) (string, error)
}

// Service handles user registration and login.
type Service struct {
	store  store.Store
	tokens TokenIssuer
	logger *slog.Logger
}

func New(s store.Store, tokens TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, tokens: tokens, logger: logger}
}

// Register creates a new user. The email is lowercased before storage so
// lookups are case-insensitive; an empty role defaults to REQUESTER.
func (s *Service) Register(ctx context.Context, email, password, displayName, role string) (identity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !govalidator.IsEmail(email) {
		return identity.User{}, dErrors.New(dErrors.CodeValidation, "invalid email address")
	}

	normalized := identity.RoleRequester
	if strings.TrimSpace(role) != "" {
		normalized = identity.NormalizeRole(role)
		if !normalized.Valid() {
			return identity.User{}, dErrors.New(dErrors.CodeValidation, "invalid role")
		}
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return identity.User{}, err
	}

	user := identity.User{
		ID:           id.NewUserID(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		Role:         normalized,
		CreatedAt:    requestcontext.Now(ctx),
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return identity.User{}, dErrors.New(dErrors.CodeConflict, "Email already registered")
		}
		return identity.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}

	s.logger.InfoContext(ctx, "user registered",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", user.ID.String(),
		"role", string(user.Role),
	)
	return user, nil
}

// Authenticate verifies credentials and issues an access token. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (identity.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.User{}, "", dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		}
		return identity.User{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}

	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		s.logger.WarnContext(ctx, "authentication failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", user.ID.String(),
		)
		return identity.User{}, "", err
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, string(user.Role))
	if err != nil {
		return identity.User{}, "", dErrors.Wrap(err, dErrors.CodeInternal, "issue token")
	}
	return user, token, nil
}

// FindByID loads a user, mapping absence to a not-found domain error.
func (s *Service) FindByID(ctx context.Context, userID id.UserID) (identity.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.User{}, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return identity.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	return user, nil
}
