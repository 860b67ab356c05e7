package stream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/stream"
)

func startPage(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestKeyResolver_SingleQuotedKey(t *testing.T) {
	srv := startPage(t, http.StatusOK, `<script>let websocketKey = 'tok-abc-123';</script>`)
	r := stream.NewKeyResolver(srv.URL, time.Second, zap.NewNop())

	key, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc-123", key)
}

func TestKeyResolver_DoubleQuotedKey(t *testing.T) {
	srv := startPage(t, http.StatusOK, `websocketKey = "tok-xyz-789"`)
	r := stream.NewKeyResolver(srv.URL, time.Second, zap.NewNop())

	key, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-xyz-789", key)
}

func TestKeyResolver_PatternMissing(t *testing.T) {
	srv := startPage(t, http.StatusOK, `<html>no key in here</html>`)
	r := stream.NewKeyResolver(srv.URL, time.Second, zap.NewNop())

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, stream.ErrKeyResolution)
	require.ErrorIs(t, err, stream.ErrKeyNotFound)
}

func TestKeyResolver_ServerError(t *testing.T) {
	srv := startPage(t, http.StatusInternalServerError, "boom")
	r := stream.NewKeyResolver(srv.URL, time.Second, zap.NewNop())

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, stream.ErrKeyResolution)
}

func TestKeyResolver_Unreachable(t *testing.T) {
	srv := startPage(t, http.StatusOK, "")
	srv.Close()
	r := stream.NewKeyResolver(srv.URL, 100*time.Millisecond, zap.NewNop())

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, stream.ErrKeyResolution)
}

func TestKeyResolver_SendsGenericUserAgent(t *testing.T) {
	gotUA := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`websocketKey = 'k'`))
	}))
	t.Cleanup(srv.Close)

	r := stream.NewKeyResolver(srv.URL, time.Second, zap.NewNop())
	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Mozilla/5.0", <-gotUA)
}
