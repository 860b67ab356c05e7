// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/config"
	"github.com/pulselens/pulselens/internal/relay"
	"github.com/pulselens/pulselens/internal/sample"
	"github.com/pulselens/pulselens/internal/stats"
	"github.com/pulselens/pulselens/internal/storage"
	"github.com/pulselens/pulselens/internal/stream"
)

// Pipeline wires the connection supervisor to the sample consumers: the
// rolling-window aggregator, the durable daily log, the Prometheus
// publisher, the subscriber fan-out, and the optional Kafka relay.
type Pipeline struct {
	cfg        *config.Config
	logger     *zap.Logger
	manager    *stream.Manager
	aggregator *stats.Aggregator
	dailyLog   *storage.DailyLog
	dispatcher *stream.Dispatcher
	metrics    *metricsPublisher
	relay      *relay.Relay

	samples chan sample.Sample
}

// New creates and wires up the ingestion pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	samples := make(chan sample.Sample, cfg.Stream.DispatchBuffer)

	dailyLog, err := storage.NewDailyLog(cfg.Data.Directory, logger.Named("storage"))
	if err != nil {
		initLogger.Error("Failed to create daily log", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStorageCreationFailed, err)
	}

	aggregator := stats.NewAggregator(cfg.Stream.WindowCapacity, logger.Named("stats"))
	dispatcher := stream.NewDispatcher(logger.Named("dispatcher"))

	manager := stream.NewManager(
		cfg.Source.URL,
		cfg.Stream.ResolveTimeout,
		stream.SessionConfig{
			SocketURL:         cfg.Source.SocketURL,
			ChannelID:         cfg.Source.ChannelID(),
			HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		},
		cfg.Stream.RetryDelay,
		samples,
		logger.Named("stream"),
	)

	p := &Pipeline{
		cfg:        cfg,
		logger:     logger.Named("pipeline"),
		manager:    manager,
		aggregator: aggregator,
		dailyLog:   dailyLog,
		dispatcher: dispatcher,
		metrics:    newMetricsPublisher(cfg.Stream.HighBPMThreshold, logger.Named("metrics")),
		samples:    samples,
	}

	if len(cfg.Relay.Brokers) > 0 {
		p.relay = relay.New(cfg.Relay, logger.Named("relay"))
		initLogger.Info("Kafka relay enabled",
			zap.Strings("brokers", cfg.Relay.Brokers),
			zap.String("topic", cfg.Relay.Topic),
		)
	}

	initLogger.Info("Pipeline instance created successfully",
		zap.String("channel_id", cfg.Source.ChannelID()),
		zap.Int("window_capacity", cfg.Stream.WindowCapacity),
	)
	return p, nil
}

// Subscribe registers an external consumer of accepted samples (overlay,
// OSD bridge, anything host-side) and returns its channel plus a cancel
// function.
func (p *Pipeline) Subscribe(buffer int) (<-chan sample.Sample, func()) {
	return p.dispatcher.Subscribe(buffer)
}

// Aggregator exposes the rolling window for stats queries and exports.
func (p *Pipeline) Aggregator() *stats.Aggregator {
	return p.aggregator
}

// Reset empties the rolling window and deletes every per-day log file,
// reinitializing a fresh one for the current date.
func (p *Pipeline) Reset() {
	p.aggregator.Clear()
	if err := p.dailyLog.ClearAll(); err != nil {
		p.logger.Warn("Failed to clear daily log files", zap.Error(err))
	}
}

// Run starts all pipeline components and waits for them to complete or
// context cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	var wg sync.WaitGroup
	pipelineErr := make(chan error, 2) // supervisor, relay

	sugar.Info("Pipeline Run: Starting components...")

	wg.Add(3)
	go p.runSupervisor(ctx, &wg, pipelineErr)
	go p.runIngest(ctx, &wg)
	go p.runStatsTicker(ctx, &wg)

	if p.relay != nil {
		relayCh, cancelRelay := p.dispatcher.Subscribe(p.cfg.Stream.DispatchBuffer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancelRelay()
			if err := p.relay.Run(ctx, relayCh); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("Relay component exited with error", zap.Error(err))
				pipelineErr <- fmt.Errorf("%w: %w", ErrRelayRunFailed, err)
			}
		}()
	}

	// Wait for context cancellation or the first error from any component.
	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	}

	wg.Wait()
	p.dispatcher.Close()
	if err := p.dailyLog.Close(); err != nil {
		sugar.Warnw("Failed to close daily log", zap.Error(err))
	}
	sugar.Info("Pipeline Run: All components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

// runSupervisor executes the reconnect supervisor in a goroutine. The
// supervisor only returns on context cancellation; anything else is a bug
// worth surfacing.
func (p *Pipeline) runSupervisor(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()

	p.logger.Debug("Starting supervisor goroutine...")
	if err := p.manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Supervisor exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrSupervisorRunFailed, err)
		return
	}
	p.logger.Debug("Supervisor goroutine cancelled gracefully")
}

// runIngest consumes decoded samples and feeds every consumer in wire
// order: window, durable log, metrics, fan-out. Persistence failures are
// logged and swallowed; they never stall ingestion.
func (p *Pipeline) runIngest(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.Named("ingest")
	logger.Debug("Starting ingest goroutine...")

	for {
		select {
		case s := <-p.samples:
			p.aggregator.Add(s)
			if err := p.dailyLog.Append(s); err != nil {
				logger.Warn("Dropping sample from durable log", zap.Error(err))
			}
			p.metrics.observe(s)
			p.dispatcher.Publish(s)

		case <-ctx.Done():
			logger.Debug("Ingest context cancelled.", zap.Error(ctx.Err()))
			return
		}
	}
}

// runStatsTicker periodically recomputes recent-window statistics and
// republishes them as gauges.
func (p *Pipeline) runStatsTicker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := p.cfg.Stream.StatsInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := p.aggregator.RecentStats(p.cfg.Stream.RecentMinutes)
			p.metrics.publishSnapshot(snap)
			p.metrics.publishDropped(p.dispatcher.Dropped())

		case <-ctx.Done():
			return
		}
	}
}
