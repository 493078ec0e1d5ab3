// Package services – SearchService
//
// This file implements the SearchService, a thin gate in front of the AI
// backend's retrieval endpoints. It owns the questions of who may search a
// project, whether the project has anything to search yet, and how large a
// retrieval window a caller may request; the answering itself lives
// upstream. Streaming answers are relayed event by event without buffering.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/domain"
)

// Searcher is the retrieval slice of the AI backend. Implemented by
// *aiclient.Client.
type Searcher interface {
	Search(ctx context.Context, namespace, question string, topK int) (*aiclient.SearchResult, error)
	SearchStream(ctx context.Context, namespace, question string, topK int, onEvent func(event string, data []byte) error) error
}

// SearchService answers questions against a project's indexed content.
// TopKDefault applies when the caller requests nothing; TopKMax caps what
// the caller may request.
type SearchService struct {
	DB          *gorm.DB
	AI          Searcher
	TopKMax     int
	TopKDefault int
}

// Search runs one synchronous question against the project and returns the
// answer with its sources. Any viewer of the project may search it. A
// project that has never been indexed is rejected; reaching the backend is
// required, so an unreachable backend surfaces as ErrServiceUnavailable
// rather than an empty answer.
func (s *SearchService) Search(ctx context.Context, userID, email, projectID, question string, topK int) (*aiclient.SearchResult, error) {
	tr := otel.Tracer("services/SearchService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	ns, question, topK, err := s.gate(ctx, userID, email, projectID, question, topK)
	if err != nil {
		return nil, err
	}
	res, err := s.AI.Search(ctx, ns, question, topK)
	if err != nil {
		return nil, mapSearchErr(err)
	}
	return res, nil
}

// SearchStream runs one streamed question and relays every upstream event
// to onEvent in arrival order. The gates match Search. Errors from onEvent
// abort the relay and release the upstream stream; errors that happen
// before any event are mapped like Search so the caller can still answer
// with a plain failure.
func (s *SearchService) SearchStream(ctx context.Context, userID, email, projectID, question string, topK int, onEvent func(event string, data []byte) error) error {
	tr := otel.Tracer("services/SearchService")
	ctx, span := tr.Start(ctx, "SearchStream",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	ns, question, topK, err := s.gate(ctx, userID, email, projectID, question, topK)
	if err != nil {
		return err
	}
	if err := s.AI.SearchStream(ctx, ns, question, topK, onEvent); err != nil {
		return mapSearchErr(err)
	}
	return nil
}

// gate resolves access, validates the question, and clamps the retrieval
// window. Returns the backend namespace to query.
func (s *SearchService) gate(ctx context.Context, userID, email, projectID, question string, topK int) (string, string, int, error) {
	p, err := projectForUser(ctx, s.DB, projectID, userID, email, domain.PermissionView)
	if err != nil {
		return "", "", 0, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", "", 0, ErrEmptyContent
	}
	// A project keeps its namespace across re-indexing, so search stays
	// available against the existing vectors while a new pass runs.
	if p.AIProjectID == "" {
		return "", "", 0, ErrProjectNotIndexed
	}
	return p.AIProjectID, question, s.clampTopK(topK), nil
}

func (s *SearchService) clampTopK(topK int) int {
	if topK <= 0 {
		return s.TopKDefault
	}
	if s.TopKMax > 0 && topK > s.TopKMax {
		return s.TopKMax
	}
	return topK
}

// mapSearchErr folds backend failures into the service taxonomy: an
// unreachable backend is unavailability, an unknown namespace means the
// project's vectors are gone and it needs indexing again.
func mapSearchErr(err error) error {
	if errors.Is(err, aiclient.ErrUnavailable) {
		return ErrServiceUnavailable
	}
	if aiclient.IsNotFound(err) {
		return ErrProjectNotIndexed
	}
	return err
}
