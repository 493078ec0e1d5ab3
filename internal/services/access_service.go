// Package services – project access resolution
//
// Projects are owned by a single principal and optionally shared by email
// with view or edit permission. Every project-scoped service funnels its
// permission check through projectForUser so the not-found/forbidden split
// stays consistent across the API.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// projectForUser loads a project and enforces the caller's permission level.
// The owner holds every permission; shared users hold the granted level, with
// edit implying view. Unknown projects return ErrProjectNotFound; existing
// projects without a sufficient grant return ErrForbidden.
func projectForUser(ctx context.Context, db *gorm.DB, projectID, userID, email string, need domain.Permission) (*domain.Project, error) {
	p, err := repo.GetProject(ctx, db, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if p.OwnerID == userID {
		return p, nil
	}

	share, err := repo.GetShareByEmail(ctx, db, projectID, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if need == domain.PermissionEdit && share.Permission != domain.PermissionEdit {
		return nil, ErrForbidden
	}
	return p, nil
}

// ownedProject loads a project and requires the caller to be its owner.
// Owner-only operations (deletion, sharing, indexing control) use this
// instead of the share-aware check.
func ownedProject(ctx context.Context, db *gorm.DB, projectID, userID string) (*domain.Project, error) {
	p, err := repo.GetProject(ctx, db, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, ErrForbidden
	}
	return p, nil
}

// normalizeEmail lowercases and trims an address so grants and lead scoping
// match regardless of how the identity provider cased it.
func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
