// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Project model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a project is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Guarded updates (MarkIndexingStarted) report a lost claim as
//     ErrNotFound as well; callers that already hold the row decide whether
//     that means "gone" or "someone else won".
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateProject(ctx, db, p) -> *domain.Project, error
//     Inserts a new Project row, assigning a UUID key and UTC timestamp
//     when the caller left them blank.
//
//   - GetProject(ctx, db, id) -> *domain.Project, error
//     Fetches a single project by ID regardless of owner; access decisions
//     belong to the service layer.
//
//   - ListProjectsByOwner(ctx, db, ownerID) -> []domain.Project, error
//     Returns all projects owned by a user, newest first.
//
//   - ListProjectsSharedWith(ctx, db, email) -> []domain.Project, error
//     Returns projects granted to the given email through project_shares.
//
//   - UpdateProjectFields(ctx, db, id, fields) -> error
//     Applies a column map to one project. ErrNotFound when no row matched.
//
//   - DeleteProject(ctx, db, id) -> error
//     Soft-deletes a project. ErrNotFound when no row matched.
//
//   - MarkIndexingStarted(ctx, db, id, aiProjectID) -> error
//     Atomically claims the project for a new indexing run. The guard
//     excludes rows already in the "indexing" state, so a concurrent second
//     start loses the claim instead of double-running.
//
//   - MarkIndexingTerminal(ctx, db, id, res) -> error
//     Records the terminal outcome (status, error, counts, completion time)
//     for a run, guarded on the row still being "indexing".
//
// This repository is designed to be wrapped by higher-level services
// (see services.ProjectService, services.IndexingService) which enforce
// access control and state-machine rules.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateProject inserts a new Project row. A blank ID is replaced with a
// random UUID and CreatedAt is set to UTC. The caller keeps ownership of p;
// the same pointer is returned populated on success.
func CreateProject(ctx context.Context, db *gorm.DB, p *domain.Project) (*domain.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.IndexingStatus == "" {
		p.IndexingStatus = domain.IndexingNotStarted
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject fetches a single project by ID. If the record does not exist
// (or is soft-deleted), it returns ErrNotFound. Ownership and share checks
// are the service layer's job.
func GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error) {
	var p domain.Project
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjectsByOwner returns all projects owned by ownerID, ordered by
// creation time descending. It returns an empty slice if the user owns
// no projects. On DB error, it returns the error.
func ListProjectsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Project, error) {
	var out []domain.Project
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListProjectsSharedWith returns projects that have an active share grant
// for the given email, ordered by creation time descending. Soft-deleted
// projects are excluded by the join condition on projects.deleted_at.
func ListProjectsSharedWith(ctx context.Context, db *gorm.DB, email string) ([]domain.Project, error) {
	var out []domain.Project
	err := db.WithContext(ctx).
		Joins("JOIN project_shares ps ON ps.project_id = projects.id").
		Where("ps.email = ?", email).
		Order("projects.created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateProjectFields applies a column map to the project identified by id.
// If no rows are affected (project missing or soft-deleted), it returns
// ErrNotFound. On DB error, the raw error is returned.
func UpdateProjectFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteProject soft-deletes the project identified by id. Share grants and
// quote history remain readable through their own tables; the row itself is
// retained under the deletion marker. ErrNotFound when no row matched.
func DeleteProject(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkIndexingStarted claims the project for a new indexing run: status
// moves to "indexing", any previous error is cleared, and the backend
// namespace is recorded. The WHERE guard skips rows already indexing, so
// under a racing double-start exactly one caller claims the run; the loser
// gets ErrNotFound and should re-read the row.
func MarkIndexingStarted(ctx context.Context, db *gorm.DB, id, aiProjectID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("id = ? AND indexing_status <> ?", id, domain.IndexingInProgress).
		Updates(map[string]any{
			"indexing_status": domain.IndexingInProgress,
			"indexing_error":  nil,
			"ai_project_id":   aiProjectID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IndexingResult carries the terminal outcome of one indexing run.
type IndexingResult struct {
	Status      domain.IndexingStatus
	Error       *string
	Threads     int
	Messages    int
	PDFs        int
	CompletedAt *time.Time
}

// MarkIndexingTerminal records the outcome of the active run. The guard on
// the "indexing" state makes reconciliation single-shot: once a terminal
// status lands, later reconciliation attempts affect zero rows and return
// ErrNotFound instead of overwriting the stored snapshot.
func MarkIndexingTerminal(ctx context.Context, db *gorm.DB, id string, res IndexingResult) error {
	out := db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("id = ? AND indexing_status = ?", id, domain.IndexingInProgress).
		Updates(map[string]any{
			"indexing_status":    res.Status,
			"indexing_error":     res.Error,
			"indexed_threads":    res.Threads,
			"indexed_messages":   res.Messages,
			"indexed_pdfs":       res.PDFs,
			"index_completed_at": res.CompletedAt,
		})
	if out.Error != nil {
		return out.Error
	}
	if out.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
