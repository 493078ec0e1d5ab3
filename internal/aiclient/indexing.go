package aiclient

import (
	"context"
	"encoding/json"
	"net/url"
)

// Run status values reported by the backend for an index pass.
const (
	RunIndexing  = "indexing"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunNotFound  = "not_found"
	RunError     = "error"
)

// IndexStats counts what an index pass ingested.
type IndexStats struct {
	ThreadCount  int `json:"thread_count"`
	MessageCount int `json:"message_count"`
	PDFCount     int `json:"pdf_count"`
}

// IndexRun is the final report of a blocking index pass.
type IndexRun struct {
	Status    string     `json:"status"` // completed | cancelled | error
	ProjectID string     `json:"project_id"`
	Error     string     `json:"error,omitempty"`
	Stats     IndexStats `json:"stats"`
}

// IndexStatus is a progress snapshot for a namespace.
type IndexStatus struct {
	ProjectID string     `json:"project_id"`
	Status    string     `json:"status"` // indexing | completed | not_found | error
	Percent   float64    `json:"percent"`
	Phase     string     `json:"phase"`
	Step      string     `json:"step"`
	Details   IndexStats `json:"details"`
	Error     string     `json:"error,omitempty"`
}

// CancelAck acknowledges a cancellation request. Cancellation is advisory:
// the running pass decides when to stop and reports it through its status.
type CancelAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DeleteResult reports namespace cleanup.
type DeleteResult struct {
	Status         string `json:"status"`
	VectorsDeleted bool   `json:"vectors_deleted"`
	StorageDeleted bool   `json:"storage_deleted"`
}

type startIndexingRequest struct {
	ProjectID   string          `json:"project_id"`
	ProjectName string          `json:"project_name"`
	UserEmail   string          `json:"user_email"`
	Provider    string          `json:"provider"`
	Credentials json.RawMessage `json:"mailbox_credentials"`
}

// StartIndexing runs a full index-and-vectorize pass for namespace using the
// given mailbox credentials. The call blocks until the pass finishes, is
// cancelled, or fails; callers that need fire-and-forget semantics run it in
// a goroutine and reconcile from the returned report.
func (c *Client) StartIndexing(ctx context.Context, namespace, projectName, userEmail, provider string, credentials json.RawMessage) (*IndexRun, error) {
	req := startIndexingRequest{
		ProjectID:   namespace,
		ProjectName: projectName,
		UserEmail:   userEmail,
		Provider:    provider,
		Credentials: credentials,
	}
	var out IndexRun
	if err := c.do(ctx, "POST", "/api/index_and_vectorize", nil, req, &out, c.indexTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// IndexingStatus polls the backend for the current state of namespace.
func (c *Client) IndexingStatus(ctx context.Context, namespace string) (*IndexStatus, error) {
	q := url.Values{"project_id": {namespace}}
	var out IndexStatus
	if err := c.do(ctx, "GET", "/api/get_project_status", q, nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelIndexing asks the backend to stop an in-progress pass for namespace.
func (c *Client) CancelIndexing(ctx context.Context, namespace string) (*CancelAck, error) {
	q := url.Values{"project_id": {namespace}}
	var out CancelAck
	if err := c.do(ctx, "POST", "/api/cancel_project_indexing", q, nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNamespace removes the vectors and stored artifacts for namespace.
// userEmail scopes the storage cleanup and may be empty.
func (c *Client) DeleteNamespace(ctx context.Context, namespace, userEmail string) (*DeleteResult, error) {
	q := url.Values{"project_id": {namespace}}
	if userEmail != "" {
		q.Set("user_email", userEmail)
	}
	var out DeleteResult
	if err := c.do(ctx, "DELETE", "/api/delete_project", q, nil, &out, c.timeout); err != nil {
		return nil, err
	}
	return &out, nil
}
