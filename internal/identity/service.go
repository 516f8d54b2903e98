package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/authgate/authgate/internal/directory"
	"github.com/authgate/authgate/internal/password"
	"github.com/authgate/authgate/internal/token"
)

// welcomeEmailTimeout bounds the fire-and-forget notification call, which
// outlives the registration request's own context.
const welcomeEmailTimeout = 10 * time.Second

// Directory is the slice of the user-directory client the service needs.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (*directory.User, error)
	GetByID(ctx context.Context, id string) (*directory.User, error)
	Create(ctx context.Context, u directory.User) (*directory.User, error)
}

// Notifier requests welcome-email delivery from the notification service.
type Notifier interface {
	SendWelcomeEmail(ctx context.Context, email, firstname, lastname string) error
}

// Session is the result of a successful login or registration.
type Session struct {
	Token string
	User  directory.User
}

// Service orchestrates credential verification and token issuance.
// It holds no mutable state; every operation is one full transition.
type Service struct {
	directory Directory
	notifier  Notifier
	codec     *token.Codec
	hasher    *password.Hasher
}

// NewService creates an identity Service.
func NewService(dir Directory, notifier Notifier, codec *token.Codec, hasher *password.Hasher) *Service {
	return &Service{
		directory: dir,
		notifier:  notifier,
		codec:     codec,
		hasher:    hasher,
	}
}

// Login verifies an email/password pair and issues a session token.
// Unknown accounts, wrong passwords and OAuth-only accounts (no stored
// hash) all fail with the same error.
func (s *Service) Login(ctx context.Context, email, secret string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || secret == "" {
		return nil, ErrMissingCredentials
	}

	u, err := s.directory.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("fetching user by email: %w", err)
	}

	if !s.hasher.Matches(secret, u.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.SessionFor(u)
}

// Register creates a new account with the free tier and issues a session
// token. The welcome email is requested in the background; its outcome
// never affects the registration result.
func (s *Service) Register(ctx context.Context, email, secret, firstname, lastname string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || secret == "" || firstname == "" || lastname == "" {
		return nil, ErrMissingFields
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	created, err := s.directory.Create(ctx, directory.User{
		Email:            email,
		Password:         hash,
		Firstname:        firstname,
		Lastname:         lastname,
		SubscriptionTier: directory.TierFree,
	})
	if err != nil {
		if errors.Is(err, directory.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	go s.sendWelcomeEmail(created.Email, created.Firstname, created.Lastname)

	return s.SessionFor(created)
}

// CurrentUser resolves a raw bearer token to a fresh user record. The
// directory is authoritative; claims beyond the subject id are never
// trusted for anything but diagnostics.
func (s *Service) CurrentUser(ctx context.Context, raw string) (*directory.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.codec.Verify(raw)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, token.ErrExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrInvalidToken
		}
	}

	if claims.UserID == "" {
		return nil, ErrTokenMissingSubject
	}

	u, err := s.directory.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user by id: %w", err)
	}

	sanitized := u.Sanitized()
	return &sanitized, nil
}

// SessionFor issues a session token for an already verified user. The
// OAuth linker hands resolved users here after account resolution.
func (s *Service) SessionFor(u *directory.User) (*Session, error) {
	tok, err := s.codec.Issue(u.ID, u.Email, u.SubscriptionTier)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Session{Token: tok, User: u.Sanitized()}, nil
}

func (s *Service) sendWelcomeEmail(email, firstname, lastname string) {
	ctx, cancel := context.WithTimeout(context.Background(), welcomeEmailTimeout)
	defer cancel()

	if err := s.notifier.SendWelcomeEmail(ctx, email, firstname, lastname); err != nil {
		slog.Error("welcome email delivery failed", "error", err, "email", email)
	}
}
