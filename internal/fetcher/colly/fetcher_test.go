package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><h1>Analysis I</h1><p>" + r.UserAgent() + "</p></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Retry: scraper.NewRetryPolicy(3, time.Millisecond)})
	body, err := f.Fetch(context.Background(), srv.URL+"/anzeigen.html?nummer=1&version=2")
	require.NoError(t, err)
	require.Contains(t, string(body), "Analysis I")
	require.Contains(t, string(body), "test-agent")
}

func TestFetchAuthWallIsSkipNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/anzeigen.html", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/Shibboleth.sso/Login?target=x", http.StatusFound)
	})
	mux.HandleFunc("/Shibboleth.sso/Login", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("please log in"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sleeper := &recordingSleeper{}
	f := New(Config{Retry: scraper.NewRetryPolicy(3, time.Millisecond)}, WithSleeper(sleeper))
	_, err := f.Fetch(context.Background(), srv.URL+"/anzeigen.html?nummer=1&version=1")
	require.ErrorIs(t, err, scraper.ErrAuthRequired)
	require.EqualValues(t, 1, hits.Load())
	require.Empty(t, sleeper.Waits())
}

func TestFetchErrorStatusIsContent(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("oops"))
	}))
	defer srv.Close()

	f := New(Config{Retry: scraper.NewRetryPolicy(3, time.Millisecond)})
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "oops", string(body))
	require.EqualValues(t, 1, hits.Load())
}

func TestFetchRetriesTransportErrorsWithBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("finally"))
	}))
	defer srv.Close()

	rt := &flakyTransport{failures: 2, next: http.DefaultTransport}
	sleeper := &recordingSleeper{}
	f := New(Config{Retry: scraper.NewRetryPolicy(3, time.Millisecond), Transport: rt}, WithSleeper(sleeper))

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "finally", string(body))
	require.EqualValues(t, 3, rt.calls.Load())
	require.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond}, sleeper.Waits())
}

func TestFetchGivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	rt := &flakyTransport{failures: 100}
	sleeper := &recordingSleeper{}
	f := New(Config{Retry: scraper.NewRetryPolicy(3, time.Millisecond), Transport: rt}, WithSleeper(sleeper))

	_, err := f.Fetch(context.Background(), "http://moses.invalid/anzeigen.html")
	require.Error(t, err)
	require.NotErrorIs(t, err, scraper.ErrAuthRequired)
	require.EqualValues(t, 3, rt.calls.Load())
	require.Len(t, sleeper.Waits(), 2)
}

func TestFetchStopsWhenBackoffCanceled(t *testing.T) {
	t.Parallel()

	rt := &flakyTransport{failures: 100}
	sleeper := &recordingSleeper{err: context.Canceled}
	f := New(Config{Retry: scraper.NewRetryPolicy(5, time.Millisecond), Transport: rt}, WithSleeper(sleeper))

	_, err := f.Fetch(context.Background(), "http://moses.invalid/")
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, rt.calls.Load())
}

func TestFetchUsesLimiter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f := New(Config{}, WithLimiter(limiter))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.EqualValues(t, 1, limiter.calls.Load())

	limiter.err = errors.New("limiter closed")
	_, err = f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	hooks := &stubHooks{}
	result := &page{}
	f.configureCollectorHooks(hooks, result)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	final := mustParseURL(t, "https://moseskonto.example/moses/login.html")
	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: final},
	})
	require.Equal(t, "body", string(result.body))
	require.Equal(t, final, result.finalURL)
	require.True(t, isAuthWall(result.finalURL))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, result.err, "boom")
}

func TestIsAuthWall(t *testing.T) {
	t.Parallel()

	require.False(t, isAuthWall(nil))
	require.False(t, isAuthWall(mustParseURL(t, "https://moses.example/beschreibung/anzeigen.html?login=1")))
	require.True(t, isAuthWall(mustParseURL(t, "https://shibboleth.example/idp/profile/SAML2/Redirect/SSO/Shibboleth")))
	require.True(t, isAuthWall(mustParseURL(t, "https://moses.example/auth/LOGIN")))
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

type flakyTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.failures || f.next == nil {
		return nil, errors.New("connection reset by peer")
	}
	return f.next.RoundTrip(req)
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return s.err
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

type countingLimiter struct {
	calls atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return l.err
}
