package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
)

func TestFetcher_FetchSuccess(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"schema":1}`))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "cvmfs-scraper-test", Timeout: time.Second}, nil, zap.NewNop())
	body, err := f.Fetch(context.Background(), srv.URL+"/cvmfs/info/v1/repositories.json")
	require.NoError(t, err)
	require.Equal(t, `{"schema":1}`, string(body))
	require.Equal(t, "cvmfs-scraper-test", gotUA.Load())
}

func TestFetcher_FetchSameURLTwice(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{}, nil, nil)
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL+"/same")
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), hits.Load())
}

func TestFetcher_FetchNon2xx(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte("nope"))
		}))

		f := New(Config{Timeout: time.Second}, nil, zap.NewNop())
		_, err := f.Fetch(context.Background(), srv.URL+"/cvmfs/repo/.cvmfspublished")
		srv.Close()

		require.ErrorIs(t, err, cvmfs.ErrFetch)
		var se *cvmfs.StatusError
		require.True(t, errors.As(err, &se))
		require.Equal(t, code, se.StatusCode)
	}
}

func TestFetcher_FetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second}, nil, zap.NewNop())
	_, err := f.Fetch(context.Background(), target+"/cvmfs/info/v1/repositories.json")
	require.ErrorIs(t, err, cvmfs.ErrFetch)
	var se *cvmfs.StatusError
	require.False(t, errors.As(err, &se))
}

func TestFetcher_FetchCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 5 * time.Second}, nil, zap.NewNop())
	_, err := f.Fetch(ctx, srv.URL+"/slow")
	require.ErrorIs(t, err, cvmfs.ErrFetch)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetcher_UsesLimiter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	limiter := &stubLimiter{}
	f := New(Config{}, limiter, zap.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	require.Equal(t, []string{srv.URL + "/a"}, limiter.urls)

	limiter.err = errors.New("denied")
	_, err = f.Fetch(context.Background(), srv.URL+"/b")
	require.ErrorIs(t, err, cvmfs.ErrFetch)
	require.ErrorContains(t, err, "denied")
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil, nil)
	var body []byte
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &body, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "http://example.org/x")},
	})
	require.Equal(t, "body", string(body))
	require.NoError(t, fetchErr)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusForbidden,
		Request:    &colly.Request{URL: mustParseURL(t, "http://example.org/y")},
	})
	require.EqualError(t, fetchErr, "fetch http://example.org/y: unexpected status 403")

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubLimiter struct {
	urls []string
	err  error
}

func (s *stubLimiter) Wait(_ context.Context, url string) error {
	s.urls = append(s.urls, url)
	return s.err
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
