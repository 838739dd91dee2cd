package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/storage/memory"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDPassthrough(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	NewServer(nil, nil, nil).Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, fakePinger{}, nil), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, NewServer(nil, fakePinger{err: errors.New("dial tcp: refused")}, nil), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "database unavailable")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_ListRuns(t *testing.T) {
	t.Parallel()

	repo := seededRuns(t)
	srv := NewServer(repo, nil, nil)

	rec := serve(t, srv, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []runDTO `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	require.Equal(t, int64(2), body.Runs[0].ID, "newest first")

	rec = serve(t, srv, http.MethodGet, "/api/runs?status=completed")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	require.Equal(t, "completed", body.Runs[0].Status)
	require.Equal(t, 3, body.Runs[0].Completed)
	require.NotNil(t, body.Runs[0].CompletedAt)

	rec = serve(t, srv, http.MethodGet, "/api/runs?limit=1&offset=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	require.Equal(t, int64(1), body.Runs[0].ID)
}

func TestServer_ListRunsBadRequests(t *testing.T) {
	t.Parallel()

	srv := NewServer(seededRuns(t), nil, nil)
	for _, path := range []string{
		"/api/runs?status=paused",
		"/api/runs?limit=0",
		"/api/runs?limit=abc",
		"/api/runs?offset=-1",
	} {
		rec := serve(t, srv, http.MethodGet, path)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestServer_GetRun(t *testing.T) {
	t.Parallel()

	srv := NewServer(seededRuns(t), nil, nil)

	rec := serve(t, srv, http.MethodGet, "/api/runs/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Run runDTO `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, int64(1), body.Run.ID)
	require.Equal(t, 5, body.Run.Total)

	require.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodGet, "/api/runs/99").Code)
	require.Equal(t, http.StatusBadRequest, serve(t, srv, http.MethodGet, "/api/runs/abc").Code)
}

func TestServer_RunRepositoryErrors(t *testing.T) {
	t.Parallel()

	srv := NewServer(failingRuns{}, nil, nil)
	require.Equal(t, http.StatusInternalServerError, serve(t, srv, http.MethodGet, "/api/runs").Code)
	require.Equal(t, http.StatusInternalServerError, serve(t, srv, http.MethodGet, "/api/runs/1").Code)

	srv = NewServer(nil, nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(t, srv, http.MethodGet, "/api/runs").Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := requestIDMiddleware(recoverMiddleware(nopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), rec.Header().Get("X-Request-ID"))
}

func serve(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func seededRuns(t *testing.T) *memory.RunStore {
	t.Helper()
	ctx := context.Background()
	clock := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	repo := memory.NewRunStore(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	first, err := repo.Create(ctx, uuid.New(), 5)
	require.NoError(t, err)
	require.NoError(t, repo.Finish(ctx, first.ID, store.RunCompleted,
		scraper.Tally{Completed: 3, Successful: 2, Skipped: 1}))
	_, err = repo.Create(ctx, uuid.New(), 7)
	require.NoError(t, err)
	return repo
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

type failingRuns struct {
	store.RunRepository
}

func (failingRuns) List(context.Context, *store.RunStatus, int, int) ([]store.ScrapingRun, error) {
	return nil, errors.New("connection refused")
}

func (failingRuns) Get(context.Context, int64) (store.ScrapingRun, error) {
	return store.ScrapingRun{}, errors.New("connection refused")
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
