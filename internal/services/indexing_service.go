// Package services – IndexingService
//
// This file implements the IndexingService, the controller for a project's
// content-indexing job on the AI backend. The backend call that runs a pass
// blocks until the pass finishes, so Start launches it on a background
// goroutine and records the outcome when it returns; Status reconciles the
// local row against the backend while a job is in flight and serves cached
// state once it is not. The backend namespace for a project is derived once,
// stored, and reused for every later run so re-indexing replaces the same
// vector set.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// IndexRunner is the slice of the AI backend the controller drives.
// Implemented by *aiclient.Client.
type IndexRunner interface {
	StartIndexing(ctx context.Context, namespace, projectName, userEmail, provider string, credentials json.RawMessage) (*aiclient.IndexRun, error)
	IndexingStatus(ctx context.Context, namespace string) (*aiclient.IndexStatus, error)
	CancelIndexing(ctx context.Context, namespace string) (*aiclient.CancelAck, error)
}

// IndexingService starts, observes, and cancels indexing jobs. At most one
// job is active per project; the store's guarded transitions enforce that
// under racing starts.
type IndexingService struct {
	DB *gorm.DB
	AI IndexRunner

	indexWG sync.WaitGroup
}

// IndexingSnapshot is the caller-facing view of a project's indexing state,
// assembled either from the stored row or from the backend's live progress.
type IndexingSnapshot struct {
	ProjectID   string                `json:"project_id"`
	Status      domain.IndexingStatus `json:"status"`
	Percent     float64               `json:"percent"`
	Phase       string                `json:"phase,omitempty"`
	Step        string                `json:"step,omitempty"`
	Threads     int                   `json:"thread_count"`
	Messages    int                   `json:"message_count"`
	PDFs        int                   `json:"pdf_count"`
	Error       *string               `json:"error,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// CancelResult acknowledges a cancellation request. Cancellation is
// advisory: the signal is forwarded to the backend and the job stays
// "indexing" locally until the run itself reports a terminal status.
type CancelResult struct {
	Requested bool   `json:"requested"`
	Detail    string `json:"detail,omitempty"`
}

// Start begins an indexing job for the owner's project and returns the
// refreshed row with the job in flight. The owner must have a mailbox
// connected; a project already indexing is a conflict. Previous terminal
// states, including failed and cancelled, allow a restart.
func (s *IndexingService) Start(ctx context.Context, userID, email, projectID string) (*domain.Project, error) {
	tr := otel.Tracer("services/IndexingService")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("user.id", userID),
		))
	defer span.End()

	p, err := ownedProject(ctx, s.DB, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !p.IndexingStatus.CanStart() {
		return nil, ErrIndexingInProgress
	}

	info, err := repo.GetUserInfo(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoMailboxConnection
		}
		return nil, err
	}
	provider, credential, ok := info.MailboxConnected()
	if !ok {
		return nil, ErrNoMailboxConnection
	}

	// The namespace is assigned on the first run and reused afterwards so
	// re-indexing replaces the project's vectors instead of orphaning them.
	ns := p.AIProjectID
	if ns == "" {
		ns = namespaceFor(p.Name, p.OwnerID)
	}

	if err := repo.MarkIndexingStarted(ctx, s.DB, p.ID, ns); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		// Lost the claim: either a racing start got there first or the row
		// is gone.
		fresh, rerr := repo.GetProject(ctx, s.DB, p.ID)
		if rerr != nil {
			return nil, ErrProjectNotFound
		}
		if fresh.IndexingStatus == domain.IndexingInProgress {
			return nil, ErrIndexingInProgress
		}
		return nil, err
	}

	s.indexWG.Add(1)
	go func() {
		defer s.indexWG.Done()
		s.runIndexing(context.Background(), p.ID, ns, p.Name, p.OwnerEmail, provider, credentialJSON(credential))
	}()

	return repo.GetProject(ctx, s.DB, p.ID)
}

// runIndexing drives one blocking backend pass and records its outcome. A
// reconciliation that affects zero rows means a status poll already landed
// the terminal state; the report is then dropped.
func (s *IndexingService) runIndexing(ctx context.Context, projectID, ns, name, ownerEmail, provider string, credentials json.RawMessage) {
	run, err := s.AI.StartIndexing(ctx, ns, name, ownerEmail, provider, credentials)

	var res repo.IndexingResult
	switch {
	case err != nil:
		msg := err.Error()
		res = repo.IndexingResult{Status: domain.IndexingFailed, Error: &msg}
	case run.Status == aiclient.RunCompleted:
		now := time.Now().UTC()
		res = repo.IndexingResult{
			Status:      domain.IndexingCompleted,
			Threads:     run.Stats.ThreadCount,
			Messages:    run.Stats.MessageCount,
			PDFs:        run.Stats.PDFCount,
			CompletedAt: &now,
		}
	case run.Status == aiclient.RunCancelled:
		res = repo.IndexingResult{Status: domain.IndexingCancelled}
	default:
		msg := run.Error
		if msg == "" {
			msg = fmt.Sprintf("indexing ended with status %q", run.Status)
		}
		res = repo.IndexingResult{Status: domain.IndexingFailed, Error: &msg}
	}

	if mErr := repo.MarkIndexingTerminal(ctx, s.DB, projectID, res); mErr != nil {
		if errors.Is(mErr, repo.ErrNotFound) {
			log.Debug().Str("project_id", projectID).Msg("indexing outcome already reconciled")
			return
		}
		log.Error().Err(mErr).Str("project_id", projectID).Msg("failed to record indexing outcome")
		return
	}
	if res.Status == domain.IndexingCompleted {
		log.Info().
			Str("project_id", projectID).
			Int("threads", res.Threads).
			Int("messages", res.Messages).
			Int("pdfs", res.PDFs).
			Msg("indexing completed")
	} else {
		log.Warn().Str("project_id", projectID).Str("status", string(res.Status)).Msg("indexing did not complete")
	}
}

// Status returns the indexing state for anyone who can view the project.
//
// Outside an active job the stored row answers directly, including the
// never-started case, and the backend is not contacted. During a job the
// backend is polled; a terminal report reconciles the row exactly once and
// later polls serve the stored snapshot.
func (s *IndexingService) Status(ctx context.Context, userID, email, projectID string) (*IndexingSnapshot, error) {
	tr := otel.Tracer("services/IndexingService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	p, err := projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionView)
	if err != nil {
		return nil, err
	}
	if p.IndexingStatus != domain.IndexingInProgress {
		return snapshotFromProject(p), nil
	}

	st, err := s.AI.IndexingStatus(ctx, p.AIProjectID)
	if err != nil {
		if errors.Is(err, aiclient.ErrUnavailable) {
			return nil, ErrServiceUnavailable
		}
		if aiclient.IsNotFound(err) {
			return s.reconcileLost(ctx, p.ID)
		}
		return nil, err
	}

	switch st.Status {
	case aiclient.RunIndexing:
		return &IndexingSnapshot{
			ProjectID: p.ID,
			Status:    domain.IndexingInProgress,
			Percent:   st.Percent,
			Phase:     st.Phase,
			Step:      st.Step,
			Threads:   st.Details.ThreadCount,
			Messages:  st.Details.MessageCount,
			PDFs:      st.Details.PDFCount,
		}, nil
	case aiclient.RunCompleted:
		now := time.Now().UTC()
		return s.reconcile(ctx, p.ID, repo.IndexingResult{
			Status:      domain.IndexingCompleted,
			Threads:     st.Details.ThreadCount,
			Messages:    st.Details.MessageCount,
			PDFs:        st.Details.PDFCount,
			CompletedAt: &now,
		})
	case aiclient.RunCancelled:
		return s.reconcile(ctx, p.ID, repo.IndexingResult{Status: domain.IndexingCancelled})
	case aiclient.RunNotFound:
		return s.reconcileLost(ctx, p.ID)
	default:
		msg := st.Error
		if msg == "" {
			msg = fmt.Sprintf("indexing ended with status %q", st.Status)
		}
		return s.reconcile(ctx, p.ID, repo.IndexingResult{Status: domain.IndexingFailed, Error: &msg})
	}
}

// reconcile lands a terminal outcome on the row and answers from the
// refreshed state. Losing the guarded update to a concurrent reconciliation
// is fine; the stored snapshot is authoritative either way.
func (s *IndexingService) reconcile(ctx context.Context, projectID string, res repo.IndexingResult) (*IndexingSnapshot, error) {
	if err := repo.MarkIndexingTerminal(ctx, s.DB, projectID, res); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	p, err := repo.GetProject(ctx, s.DB, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return snapshotFromProject(p), nil
}

// reconcileLost handles the backend no longer knowing the job it was given.
func (s *IndexingService) reconcileLost(ctx context.Context, projectID string) (*IndexingSnapshot, error) {
	msg := "indexing job lost by backend"
	return s.reconcile(ctx, projectID, repo.IndexingResult{Status: domain.IndexingFailed, Error: &msg})
}

// Cancel forwards a cancellation request for the owner's in-flight job.
// Delivery is best effort: an unreachable backend is logged, not surfaced,
// because a lost signal and an ignored one are indistinguishable to the
// caller. The job stays "indexing" until the run reports a terminal status.
func (s *IndexingService) Cancel(ctx context.Context, userID, email, projectID string) (*CancelResult, error) {
	tr := otel.Tracer("services/IndexingService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	p, err := ownedProject(ctx, s.DB, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !p.IndexingStatus.CanCancel() {
		return nil, ErrNotIndexing
	}

	ack, err := s.AI.CancelIndexing(ctx, p.AIProjectID)
	if err != nil {
		log.Warn().Err(err).Str("project_id", p.ID).Msg("cancel signal did not reach the indexer")
		return &CancelResult{Requested: true, Detail: "cancellation could not be confirmed"}, nil
	}
	return &CancelResult{Requested: true, Detail: ack.Status}, nil
}

// Wait blocks until every background indexing run launched by Start has
// returned. Used during shutdown.
func (s *IndexingService) Wait() { s.indexWG.Wait() }

func snapshotFromProject(p *domain.Project) *IndexingSnapshot {
	snap := &IndexingSnapshot{
		ProjectID:   p.ID,
		Status:      p.IndexingStatus,
		Threads:     p.IndexedThreads,
		Messages:    p.IndexedMessages,
		PDFs:        p.IndexedPDFs,
		Error:       p.IndexingError,
		CompletedAt: p.IndexCompletedAt,
	}
	if p.IndexingStatus == domain.IndexingCompleted {
		snap.Percent = 100
	}
	return snap
}

// namespaceFor derives the stable backend namespace for a project: a slug
// of the name plus a short hash of the owner, so equal names under
// different owners never collide. Derived once per project and then stored.
func namespaceFor(name, ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return slugify(name) + "_" + hex.EncodeToString(sum[:])[:8]
}

// slugify lowercases, strips diacritics, and squeezes every run of
// non-alphanumerics to a single underscore.
func slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	pending := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pending = false
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}

// credentialJSON renders a stored mailbox credential as the JSON value the
// backend expects. Credentials are stored as the provider's token JSON;
// anything else is forwarded as a JSON string.
func credentialJSON(credential string) json.RawMessage {
	trimmed := strings.TrimSpace(credential)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(credential)
	return b
}
