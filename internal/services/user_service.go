// Package services – UserService
//
// This file implements the UserService, which manages the lazily created
// profile row behind each authenticated principal: contact details and the
// mailbox connections the indexer reads from. Credentials are stored opaque
// and never returned to callers.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// UserService reads and updates the caller's own profile.
type UserService struct {
	DB *gorm.DB
}

// ProfileUpdate carries a partial profile update. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	FullName    *string
	CompanyName *string
	Phone       *string
}

// Profile returns the caller's profile, creating an empty row on first
// touch.
func (s *UserService) Profile(ctx context.Context, userID, email string) (*domain.UserInfo, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Profile",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return repo.GetOrCreateUserInfo(ctx, s.DB, userID, normalizeEmail(email))
}

// UpdateProfile applies a partial update and returns the refreshed profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID, email string, upd ProfileUpdate) (*domain.UserInfo, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	u, err := repo.GetOrCreateUserInfo(ctx, s.DB, userID, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if upd.FullName != nil {
		fields["full_name"] = strings.TrimSpace(*upd.FullName)
	}
	if upd.CompanyName != nil {
		fields["company_name"] = strings.TrimSpace(*upd.CompanyName)
	}
	if upd.Phone != nil {
		fields["phone"] = strings.TrimSpace(*upd.Phone)
	}
	if len(fields) == 0 {
		return u, nil
	}

	if err := repo.UpdateUserInfoFields(ctx, s.DB, userID, fields); err != nil {
		return nil, err
	}
	return repo.GetUserInfo(ctx, s.DB, userID)
}

// ConnectMailbox stores a provider connection for the indexer to read from.
// Only gmail and outlook are supported; the credential is the provider's
// token material and must be present.
func (s *UserService) ConnectMailbox(ctx context.Context, userID, email, provider, credential string) (*domain.UserInfo, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "ConnectMailbox",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("provider", provider),
		))
	defer span.End()

	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != "gmail" && provider != "outlook" {
		return nil, ErrInvalidProvider
	}
	if strings.TrimSpace(credential) == "" {
		return nil, ErrEmptyContent
	}

	// Ensure the row exists before the column update.
	if _, err := repo.GetOrCreateUserInfo(ctx, s.DB, userID, normalizeEmail(email)); err != nil {
		return nil, err
	}
	if err := repo.SetMailConnection(ctx, s.DB, userID, provider, credential, true); err != nil {
		return nil, err
	}
	return repo.GetUserInfo(ctx, s.DB, userID)
}

// DisconnectMailbox clears a provider connection and its stored credential.
// Disconnecting a provider that was never connected is a no-op. A job
// already in flight keeps the credential it was started with.
func (s *UserService) DisconnectMailbox(ctx context.Context, userID, email, provider string) (*domain.UserInfo, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "DisconnectMailbox",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("provider", provider),
		))
	defer span.End()

	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != "gmail" && provider != "outlook" {
		return nil, ErrInvalidProvider
	}
	if _, err := repo.GetOrCreateUserInfo(ctx, s.DB, userID, normalizeEmail(email)); err != nil {
		return nil, err
	}
	if err := repo.SetMailConnection(ctx, s.DB, userID, provider, "", false); err != nil {
		return nil, err
	}
	return repo.GetUserInfo(ctx, s.DB, userID)
}
