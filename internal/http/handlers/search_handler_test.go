package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitewise/go-project-backend/internal/aiclient"
	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/services"
	"github.com/sitewise/go-project-backend/internal/sse"
)

// ---------- stub service ----------

type stubSearchSvc struct {
	search func(ctx context.Context, uid, email, projectID, question string, topK int) (*aiclient.SearchResult, error)
	stream func(ctx context.Context, uid, email, projectID, question string, topK int, onEvent func(string, []byte) error) error
}

func (s stubSearchSvc) Search(ctx context.Context, uid, email, projectID, question string, topK int) (*aiclient.SearchResult, error) {
	if s.search != nil {
		return s.search(ctx, uid, email, projectID, question, topK)
	}
	return &aiclient.SearchResult{Answer: "n/a"}, nil
}

func (s stubSearchSvc) SearchStream(ctx context.Context, uid, email, projectID, question string, topK int, onEvent func(string, []byte) error) error {
	if s.stream != nil {
		return s.stream(ctx, uid, email, projectID, question, topK, onEvent)
	}
	return nil
}

func newSearchRouter(svc SearchService, uid, email string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(Deps{Search: svc})
	r := gin.New()
	r.Use(asUser(uid, email))
	r.POST("/projects/:id/search", h.SearchProject)
	r.POST("/projects/:id/search/stream", h.SearchProjectStream)
	return r
}

// ---------- synchronous search ----------

func TestSearchProject_Validation_Success(t *testing.T) {
	// bad UUID -> 400
	{
		r := newSearchRouter(stubSearchSvc{}, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/not-uuid/search", `{"question":"x"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("uuid 400 -> %d", w.Code)
		}
	}

	// missing question -> 400
	{
		r := newSearchRouter(stubSearchSvc{}, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/search", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing question -> %d", w.Code)
		}
	}

	// unindexed project surfaces as bad request
	{
		svc := stubSearchSvc{
			search: func(context.Context, string, string, string, string, int) (*aiclient.SearchResult, error) {
				return nil, services.ErrProjectNotIndexed
			},
		}
		r := newSearchRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/search", `{"question":"x"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("not indexed -> %d", w.Code)
		}
	}

	// success: args reach the service, the result reaches the client
	{
		var gotQuestion string
		var gotTopK int
		svc := stubSearchSvc{
			search: func(_ context.Context, uid, email, _, question string, topK int) (*aiclient.SearchResult, error) {
				if uid != "u1" || email != "u1@example.com" {
					t.Fatalf("principal mismatch: %s/%s", uid, email)
				}
				gotQuestion, gotTopK = question, topK
				return &aiclient.SearchResult{
					Answer:       "The panel upgrade was quoted at $4,200.",
					Sources:      []domain.Source{{Content: "Panel upgrade, $4,200", Score: 0.92, Kind: "pdf"}},
					SearchTimeMS: 120,
					LLMTimeMS:    800,
					TotalTimeMS:  950,
				}, nil
			},
		}
		r := newSearchRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/search",
			`{"question":"what did the panel upgrade cost?","top_k":3}`)
		if w.Code != http.StatusOK {
			t.Fatalf("search -> %d body=%s", w.Code, w.Body.String())
		}
		if gotQuestion != "what did the panel upgrade cost?" || gotTopK != 3 {
			t.Fatalf("args mismatch: %q/%d", gotQuestion, gotTopK)
		}
		var out aiclient.SearchResult
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Answer == "" || len(out.Sources) != 1 || out.TotalTimeMS != 950 {
			t.Fatalf("result mismatch: %+v", out)
		}
	}
}

// ---------- streaming search ----------

func TestSearchStream_RelaysBackendEvents(t *testing.T) {
	svc := stubSearchSvc{
		stream: func(_ context.Context, _, _, _, _ string, _ int, emit func(string, []byte) error) error {
			if err := emit(sse.EventThinking, []byte(`{"status":"searching emails"}`)); err != nil {
				return err
			}
			if err := emit(sse.EventSources, []byte(`[{"content":"Panel quote","score":0.9,"kind":"pdf"}]`)); err != nil {
				return err
			}
			if err := emit(sse.EventChunk, []byte("The panel upgrade")); err != nil {
				return err
			}
			if err := emit(sse.EventChunk, []byte(" was quoted at $4,200.")); err != nil {
				return err
			}
			return emit(sse.EventDone, []byte("{}"))
		},
	}
	r := newSearchRouter(svc, "u1", "u1@example.com")
	w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/search/stream",
		`{"question":"what did the panel upgrade cost?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("stream -> %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	if w.Header().Get("X-Accel-Buffering") != "no" {
		t.Fatalf("proxy buffering must be disabled")
	}

	want := "event: thinking\ndata: {\"status\":\"searching emails\"}\n\n" +
		"event: sources\ndata: [{\"content\":\"Panel quote\",\"score\":0.9,\"kind\":\"pdf\"}]\n\n" +
		"event: chunk\ndata: The panel upgrade\n\n" +
		"event: chunk\ndata:  was quoted at $4,200.\n\n" +
		"event: done\ndata: {}\n\n"
	if got := w.Body.String(); got != want {
		t.Fatalf("frame mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestSearchStream_ErrorBeforeFirstEvent_IsJSON(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		wantCode string
	}{
		{services.ErrProjectNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrProjectNotIndexed, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrServiceUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable},
	}
	for _, tc := range cases {
		svc := stubSearchSvc{
			stream: func(context.Context, string, string, string, string, int, func(string, []byte) error) error {
				return tc.err
			},
		}
		r := newSearchRouter(svc, "u1", "u1@example.com")
		w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/search/stream", `{"question":"x"}`)
		if w.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Fatalf("%v: pre-stream failures must stay JSON, got %q", tc.err, ct)
		}
		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: json: %v", tc.err, err)
		}
		if body.Code != tc.wantCode {
			t.Fatalf("%v: code = %q, want %q", tc.err, body.Code, tc.wantCode)
		}
	}
}

func TestSearchStream_MidStreamFailure_SynthesizesErrorEvent(t *testing.T) {
	svc := stubSearchSvc{
		stream: func(_ context.Context, _, _, _, _ string, _ int, emit func(string, []byte) error) error {
			if err := emit(sse.EventChunk, []byte("partial answer")); err != nil {
				return err
			}
			return errors.New("upstream reset")
		},
	}
	r := newSearchRouter(svc, "u1", "u1@example.com")
	w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/search/stream", `{"question":"x"}`)

	body := w.Body.String()
	if !strings.HasPrefix(body, "event: chunk\ndata: partial answer\n\n") {
		t.Fatalf("relayed chunk missing: %q", body)
	}
	if !strings.HasSuffix(body, "event: error\ndata: {\"message\":\"stream interrupted\"}\n\n") {
		t.Fatalf("terminal error not synthesized: %q", body)
	}
}

func TestSearchStream_NoSecondTerminalEvent(t *testing.T) {
	// The backend sent done and then failed tearing down. The client already
	// has its terminal event; the handler must not append another.
	svc := stubSearchSvc{
		stream: func(_ context.Context, _, _, _, _ string, _ int, emit func(string, []byte) error) error {
			if err := emit(sse.EventDone, []byte("{}")); err != nil {
				return err
			}
			return errors.New("teardown failed")
		},
	}
	r := newSearchRouter(svc, "u1", "u1@example.com")
	w := doJSON(r, http.MethodPost, "/projects/"+uuid.NewString()+"/search/stream", `{"question":"x"}`)

	body := w.Body.String()
	if strings.Count(body, "event: done") != 1 {
		t.Fatalf("expected exactly one done event: %q", body)
	}
	if strings.Contains(body, "event: error") {
		t.Fatalf("terminal event duplicated: %q", body)
	}
}
