package memory

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
)

func TestFetcher_CannedResponses(t *testing.T) {
	t.Parallel()

	f := New().
		SetString("http://a/ok", "body").
		SetStatus("http://a/gone", http.StatusGone).
		SetError("http://a/down", errors.New("connection refused"))
	ctx := context.Background()

	body, err := f.Fetch(ctx, "http://a/ok")
	require.NoError(t, err)
	require.Equal(t, "body", string(body))

	_, err = f.Fetch(ctx, "http://a/gone")
	var se *cvmfs.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusGone, se.StatusCode)
	require.ErrorIs(t, err, cvmfs.ErrFetch)

	_, err = f.Fetch(ctx, "http://a/down")
	require.ErrorIs(t, err, cvmfs.ErrFetch)
	require.ErrorContains(t, err, "connection refused")

	_, err = f.Fetch(ctx, "http://a/missing")
	require.ErrorIs(t, err, cvmfs.ErrFetch)

	require.Equal(t, []string{"http://a/ok", "http://a/gone", "http://a/down", "http://a/missing"}, f.Requests())
	require.True(t, f.Requested("http://a/ok"))
	require.False(t, f.Requested("http://a/never"))
}

func TestFetcher_CanceledContext(t *testing.T) {
	t.Parallel()

	f := New().SetString("http://a/ok", "body")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "http://a/ok")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, f.Requests())
}
