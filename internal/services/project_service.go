// Package services – ProjectService
//
// This file implements the ProjectService, which owns the project lifecycle
// and its sharing grants. Projects are the unit everything else hangs off:
// indexing runs, searches, chats, and quote requests all resolve their
// permissions through the project. Deleting a project also asks the AI
// backend to drop the project's vector namespace, best effort, so storage
// does not leak.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// NamespaceDeleter is the cleanup slice of the AI backend. Implemented by
// *aiclient.Client.
type NamespaceDeleter interface {
	DeleteNamespace(ctx context.Context, namespace, userEmail string) (*aiclient.DeleteResult, error)
}

// ProjectService manages projects and their share grants. AI may be nil in
// deployments without a backend; deletion then skips namespace cleanup.
type ProjectService struct {
	DB *gorm.DB
	AI NamespaceDeleter

	cleanupWG sync.WaitGroup
}

// ProjectInput carries the caller-supplied fields for a new project.
type ProjectInput struct {
	Name       string
	Street     string
	City       string
	Region     string
	Country    string
	PostalCode string
	SquareFeet float64
}

// ProjectUpdate carries a partial update. Nil fields are left unchanged.
type ProjectUpdate struct {
	Name       *string
	Street     *string
	City       *string
	Region     *string
	Country    *string
	PostalCode *string
	SquareFeet *float64
}

// Create inserts a project owned by the caller. The name is required;
// square footage may be zero for projects sized later, but never negative.
// The country defaults to CA.
func (s *ProjectService) Create(ctx context.Context, userID, email string, in ProjectInput) (*domain.Project, error) {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrEmptyContent
	}
	if in.SquareFeet < 0 {
		return nil, ErrInvalidSize
	}
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if country == "" {
		country = "CA"
	}
	return repo.CreateProject(ctx, s.DB, &domain.Project{
		OwnerID:    userID,
		OwnerEmail: normalizeEmail(email),
		Name:       name,
		Street:     strings.TrimSpace(in.Street),
		City:       strings.TrimSpace(in.City),
		Region:     strings.TrimSpace(in.Region),
		Country:    country,
		PostalCode: strings.TrimSpace(in.PostalCode),
		SquareFeet: in.SquareFeet,
	})
}

// List returns the caller's own projects, newest first.
func (s *ProjectService) List(ctx context.Context, userID string) ([]domain.Project, error) {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return repo.ListProjectsByOwner(ctx, s.DB, userID)
}

// ListSharedWith returns the projects shared with the caller's email,
// newest first.
func (s *ProjectService) ListSharedWith(ctx context.Context, email string) ([]domain.Project, error) {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "ListSharedWith")
	defer span.End()

	return repo.ListProjectsSharedWith(ctx, s.DB, normalizeEmail(email))
}

// Get returns one project for its owner or anyone it is shared with.
func (s *ProjectService) Get(ctx context.Context, userID, email, projectID string) (*domain.Project, error) {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	return projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionView)
}

// Update applies a partial update for the owner or an edit-level share and
// returns the refreshed row. Renaming never changes the stored backend
// namespace; the vectors stay attached to the project.
func (s *ProjectService) Update(ctx context.Context, userID, email, projectID string, upd ProjectUpdate) (*domain.Project, error) {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	p, err := projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionEdit)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, ErrEmptyContent
		}
		fields["name"] = name
	}
	if upd.Street != nil {
		fields["street"] = strings.TrimSpace(*upd.Street)
	}
	if upd.City != nil {
		fields["city"] = strings.TrimSpace(*upd.City)
	}
	if upd.Region != nil {
		fields["region"] = strings.TrimSpace(*upd.Region)
	}
	if upd.Country != nil {
		country := strings.ToUpper(strings.TrimSpace(*upd.Country))
		if country == "" {
			return nil, ErrEmptyContent
		}
		fields["country"] = country
	}
	if upd.PostalCode != nil {
		fields["postal_code"] = strings.TrimSpace(*upd.PostalCode)
	}
	if upd.SquareFeet != nil {
		if *upd.SquareFeet < 0 {
			return nil, ErrInvalidSize
		}
		fields["square_feet"] = *upd.SquareFeet
	}
	if len(fields) == 0 {
		return p, nil
	}

	if err := repo.UpdateProjectFields(ctx, s.DB, projectID, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return repo.GetProject(ctx, s.DB, projectID)
}

// Delete soft-deletes the owner's project and asks the backend to drop its
// vector namespace. The cleanup is fire and forget: the project is gone for
// the caller either way, and an unreachable backend only leaves vectors to
// be reaped later.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	p, err := ownedProject(ctx, s.DB, projectID, userID)
	if err != nil {
		return err
	}
	if err := repo.DeleteProject(ctx, s.DB, p.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProjectNotFound
		}
		return err
	}

	if s.AI != nil && p.AIProjectID != "" {
		ns, ownerEmail := p.AIProjectID, p.OwnerEmail
		s.cleanupWG.Add(1)
		go func() {
			defer s.cleanupWG.Done()
			if _, err := s.AI.DeleteNamespace(context.Background(), ns, ownerEmail); err != nil {
				log.Warn().Err(err).Str("project_id", projectID).Str("namespace", ns).Msg("namespace cleanup failed")
			}
		}()
	}
	return nil
}

// Wait blocks until every background namespace cleanup has returned. Used
// during shutdown.
func (s *ProjectService) Wait() { s.cleanupWG.Wait() }

// Share grants view or edit access on the owner's project to an email
// address. Granting to the owner, or granting twice, is a conflict.
func (s *ProjectService) Share(ctx context.Context, userID, projectID, shareEmail, permission string) (*domain.ProjectShare, error) {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "Share",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("permission", permission),
		))
	defer span.End()

	p, err := ownedProject(ctx, s.DB, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidPermission(permission) {
		return nil, ErrInvalidPermission
	}
	addr := normalizeEmail(shareEmail)
	if addr == "" || !strings.Contains(addr, "@") {
		return nil, ErrInvalidEmail
	}
	if addr == normalizeEmail(p.OwnerEmail) {
		return nil, ErrDuplicateShare
	}

	share, err := repo.CreateShare(ctx, s.DB, p.ID, addr, permission, userID)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateShare
		}
		return nil, err
	}
	return share, nil
}

// ListShares returns the grants on the owner's project, oldest first.
func (s *ProjectService) ListShares(ctx context.Context, userID, projectID string) ([]domain.ProjectShare, error) {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "ListShares",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	if _, err := ownedProject(ctx, s.DB, projectID, userID); err != nil {
		return nil, err
	}
	return repo.ListShares(ctx, s.DB, projectID)
}

// Unshare revokes one grant on the owner's project.
func (s *ProjectService) Unshare(ctx context.Context, userID, projectID, shareID string) error {
	tr := otel.Tracer("services/ProjectService")
	ctx, span := tr.Start(ctx, "Unshare",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("share.id", shareID),
		))
	defer span.End()

	if _, err := ownedProject(ctx, s.DB, projectID, userID); err != nil {
		return err
	}
	err := repo.DeleteShare(ctx, s.DB, shareID, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrShareNotFound
	}
	return err
}
