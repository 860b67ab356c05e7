package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/sample"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second

	heartbeatTopic = "phoenix"
	heartbeatEvent = "heartbeat"
	joinEvent      = "phx_join"
)

// outboundFrame is the channel protocol envelope for join and heartbeat
// frames. Payload is always an empty object; Ref increases monotonically
// across all outbound frames of one session.
type outboundFrame struct {
	Topic   string   `json:"topic"`
	Event   string   `json:"event"`
	Payload struct{} `json:"payload"`
	Ref     int64    `json:"ref"`
}

// SessionConfig carries the immutable parameters of one connection attempt.
type SessionConfig struct {
	SocketURL         string
	ChannelID         string
	HeartbeatInterval time.Duration
}

// Session owns exactly one socket connection: key resolution, dial, join
// handshake, heartbeat timer, and the inbound frame loop. Run executes the
// whole lifecycle once and returns the failure that ended it; reconnecting
// is the Manager's job.
type Session struct {
	cfg      SessionConfig
	resolver *KeyResolver
	out      chan<- sample.Sample
	logger   *zap.Logger
	now      func() time.Time

	ref     atomic.Int64
	state   atomic.Int32
	writeMu sync.Mutex
}

// NewSession creates a session that forwards accepted samples to out.
func NewSession(cfg SessionConfig, resolver *KeyResolver, out chan<- sample.Sample, logger *zap.Logger) *Session {
	return &Session{
		cfg:      cfg,
		resolver: resolver,
		out:      out,
		logger:   logger,
		now:      time.Now,
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run executes one connection lifecycle: resolve key, dial, join, stream.
// It blocks until the connection fails or ctx is cancelled, always leaving
// the session disconnected and the heartbeat goroutine stopped before it
// returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	s.setState(StateResolvingKey)
	key, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	s.setState(StateConnecting)
	conn, err := s.dial(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx is cancelled. runCtx also bounds the
	// heartbeat goroutine so teardown can never leave a stale writer behind.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-runCtx.Done()
		conn.Close()
	}()

	s.setState(StateJoined)
	topic := "hr:" + s.cfg.ChannelID
	if err := s.writeFrame(conn, topic, joinEvent); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	s.logger.Info("Joined channel", zap.String("topic", topic))

	// The join ack arrives as a regular inbound frame and carries no hr
	// payload, so streaming starts immediately.
	s.setState(StateStreaming)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.heartbeat(runCtx, conn)
	}()

	err = s.readLoop(ctx, conn)

	s.setState(StateClosing)
	cancel()
	conn.Close()
	wg.Wait()
	return err
}

func (s *Session) dial(ctx context.Context, key string) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.SocketURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", key)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %s: %w", u.Host, resp.Status, err)
		}
		return nil, err
	}
	s.logger.Info("Websocket connected", zap.String("host", u.Host))
	return conn, nil
}

// readLoop consumes inbound frames until the connection fails. Malformed
// frames are dropped silently; frames without a usable hr payload are
// ignored. Accepted samples are forwarded in wire order.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}

		bpm, ok, err := sample.DecodeFrame(data)
		if err != nil {
			// Not a connection error: the remote occasionally sends
			// non-JSON noise.
			droppedFramesTotal.Inc()
			s.logger.Debug("Dropping malformed frame", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.out <- sample.New(bpm, s.now()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// heartbeat sends a heartbeat frame immediately on entering streaming and
// then once per interval until ctx is cancelled. A send failure closes the
// connection, which surfaces in the read loop as connection loss.
func (s *Session) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := s.writeFrame(conn, heartbeatTopic, heartbeatEvent); err != nil {
			s.logger.Warn("Heartbeat send failed, closing connection", zap.Error(err))
			conn.Close()
			return
		}
		s.logger.Debug("Heartbeat sent")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) writeFrame(conn *websocket.Conn, topic, event string) error {
	frame := outboundFrame{
		Topic: topic,
		Event: event,
		Ref:   s.ref.Add(1),
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		s.logger.Debug("Session state changed",
			zap.String("from", prev.String()),
			zap.String("to", next.String()),
		)
	}
}

// isClosedError reports whether err looks like a normal websocket teardown
// rather than an unexpected failure; used by callers to tune log levels.
func isClosedError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		websocket.IsCloseError(errors.Unwrap(err), websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
