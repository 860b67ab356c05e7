package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/config"
	"github.com/pulselens/pulselens/internal/sample"
)

type kafkaZapErrorLogger struct {
	log *zap.Logger
}

func (l kafkaZapErrorLogger) Printf(msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

// Relay forwards accepted samples to a Kafka topic so out-of-process
// collaborators can consume the stream. Delivery is best effort, like the
// durable log: a write failure is logged and the sample skipped, never
// fatal to ingestion.
type Relay struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// New creates a relay targeting the configured brokers and topic.
func New(cfg config.RelayConfig, logger *zap.Logger) *Relay {
	writer := &kafka.Writer{
		Addr:        kafka.TCP(cfg.Brokers...),
		Topic:       cfg.Topic,
		Balancer:    &kafka.LeastBytes{},
		ErrorLogger: kafkaZapErrorLogger{logger.Named("kafka-writer").WithOptions(zap.AddCallerSkip(1))},
	}

	logger.Info("Kafka relay created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return &Relay{writer: writer, logger: logger}
}

// Run forwards samples from in until the channel closes or ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context, in <-chan sample.Sample) error {
	sugar := r.logger.Sugar()
	sugar.Info("Starting relay loop...")

	defer func() {
		if err := r.writer.Close(); err != nil {
			sugar.Errorw("Failed to close Kafka writer cleanly", zap.Error(err))
		}
		sugar.Info("Relay loop stopped.")
	}()

	for {
		select {
		case s, ok := <-in:
			if !ok {
				sugar.Info("Relay input channel closed.")
				return nil
			}
			r.forward(ctx, s)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Relay) forward(ctx context.Context, s sample.Sample) {
	value, err := json.Marshal(s)
	if err != nil {
		r.logger.Warn("Failed to marshal sample for relay", zap.Error(err))
		return
	}

	if err := r.writer.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("Failed to relay sample", zap.Error(err))
	}
}
