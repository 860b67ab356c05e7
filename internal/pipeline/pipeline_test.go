package pipeline_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/config"
	"github.com/pulselens/pulselens/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startFakeSource serves a key page and a websocket endpoint that, after the
// join handshake, emits the given frames and then holds the connection open.
func startFakeSource(t *testing.T, frames []string) (keyURL, socketURL string) {
	t.Helper()

	keySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`websocketKey = 'e2e-key'`))
	}))
	t.Cleanup(keySrv.Close)

	wsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil { // join
			return
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection until the client disconnects.
		conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(wsSrv.Close)

	return keySrv.URL + "?id=abc123", "ws" + strings.TrimPrefix(wsSrv.URL, "http")
}

func testConfig(t *testing.T, keyURL, socketURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Source: config.SourceConfig{URL: keyURL, SocketURL: socketURL},
		Stream: config.StreamConfig{
			HeartbeatInterval: time.Minute,
			RetryDelay:        20 * time.Millisecond,
			ResolveTimeout:    time.Second,
			WindowCapacity:    100,
			DispatchBuffer:    16,
			StatsInterval:     25 * time.Millisecond,
			RecentMinutes:     5,
			HighBPMThreshold:  160,
		},
		Data: config.DataConfig{Directory: t.TempDir()},
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	keyURL, socketURL := startFakeSource(t, []string{
		`{"topic":"hr:abc123","event":"phx_reply","payload":{"status":"ok"},"ref":1}`,
		`{"payload":{"hr":72}}`,
		`not json`,
		`{"payload":{"hr":75}}`,
	})
	cfg := testConfig(t, keyURL, socketURL)

	p, err := pipeline.New(cfg, zap.NewNop())
	require.NoError(t, err)

	sub, cancelSub := p.Subscribe(16)
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	// Both samples reach subscribers, in wire order, despite the malformed
	// frame between them.
	first := <-sub
	second := <-sub
	require.Equal(t, 72, first.Value)
	require.Equal(t, 75, second.Value)

	// The window retains both.
	require.Equal(t, 2, p.Aggregator().Len())
	snap := p.Aggregator().OverallStats()
	require.Equal(t, 2, snap.Count)
	require.Equal(t, 72, snap.Min)
	require.Equal(t, 75, snap.Max)

	// Both rows are already durable in today's log file.
	files, err := filepath.Glob(filepath.Join(cfg.Data.Directory, "heart_rate_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "timestamp,heart_rate,datetime,readable_time", lines[0])

	cancel()
	require.NoError(t, <-errCh)
}

func TestPipeline_Reset(t *testing.T) {
	keyURL, socketURL := startFakeSource(t, []string{
		`{"payload":{"hr":80}}`,
	})
	cfg := testConfig(t, keyURL, socketURL)

	p, err := pipeline.New(cfg, zap.NewNop())
	require.NoError(t, err)

	sub, cancelSub := p.Subscribe(4)
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	<-sub // one sample ingested
	require.Equal(t, 1, p.Aggregator().Len())

	p.Reset()

	require.Equal(t, 0, p.Aggregator().Len())
	files, err := filepath.Glob(filepath.Join(cfg.Data.Directory, "heart_rate_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.Equal(t, "timestamp,heart_rate,datetime,readable_time", strings.TrimSpace(string(data)))

	cancel()
	require.NoError(t, <-errCh)
}

func TestPipeline_ReconnectsAfterSocketClose(t *testing.T) {
	keySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`websocketKey = 'retry-key'`))
	}))
	t.Cleanup(keySrv.Close)

	connects := make(chan struct{}, 16)
	wsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connects <- struct{}{}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, _ = conn.ReadMessage() // join, then drop the connection
		conn.Close()
	}))
	t.Cleanup(wsSrv.Close)

	cfg := testConfig(t, keySrv.URL+"?id=abc123", "ws"+strings.TrimPrefix(wsSrv.URL, "http"))

	p, err := pipeline.New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	// A mid-stream close is answered with a fresh session after the retry
	// delay.
	<-connects
	select {
	case <-connects:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not reconnect after socket close")
	}

	cancel()
	require.NoError(t, <-errCh)
}
