package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/sample"
)

// Manager supervises the channel session across its lifetime. Every session
// failure is answered with a fresh session after a fixed delay: no backoff,
// no cap, no giving up. The consuming side has no failure state to show, so
// silent eventual reconnection is the intended behavior.
type Manager struct {
	session SessionConfig
	delay   time.Duration
	out     chan<- sample.Sample
	logger  *zap.Logger

	// newSession builds a fresh resolver and session for each attempt.
	newSession func() *Session
}

// NewManager creates a supervisor that feeds accepted samples into out.
// Each attempt resolves a fresh key from keyURL before dialing.
func NewManager(keyURL string, resolveTimeout time.Duration, session SessionConfig, retryDelay time.Duration, out chan<- sample.Sample, logger *zap.Logger) *Manager {
	m := &Manager{
		session: session,
		delay:   retryDelay,
		out:     out,
		logger:  logger,
	}
	m.newSession = func() *Session {
		resolver := NewKeyResolver(keyURL, resolveTimeout, logger.Named("resolver"))
		return NewSession(session, resolver, out, logger.Named("session"))
	}
	return m
}

// Run loops forever: build a session, run it to completion, log the
// failure, wait the fixed delay, repeat. It returns only when ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("Connection supervisor started",
		zap.String("channel_id", m.session.ChannelID),
		zap.Duration("retry_delay", m.delay),
	)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := m.newSession().Run(ctx)
		if ctx.Err() != nil {
			m.logger.Info("Connection supervisor stopped")
			return ctx.Err()
		}

		reconnectsTotal.Inc()
		if isClosedError(err) {
			m.logger.Info("Session closed, reconnecting",
				zap.Duration("retry_delay", m.delay))
		} else {
			m.logger.Warn("Session failed, reconnecting",
				zap.Error(err),
				zap.Duration("retry_delay", m.delay))
		}

		select {
		case <-ctx.Done():
			m.logger.Info("Connection supervisor stopped")
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
}
