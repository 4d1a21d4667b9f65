package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/pkg/logger"
)

// maxHandlerRetries bounds how often one message is handed to the handler
// before it is dead-lettered (or dropped when no DLQ is configured).
const maxHandlerRetries = 3

// Handler processes one event. A returned error triggers a retry.
type Handler func(ctx context.Context, event *Event) error

// messageReader is satisfied by *kafka.Reader.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// deadLetterer is satisfied by *DLQProducer.
type deadLetterer interface {
	Publish(ctx context.Context, msg kafka.Message, lastErr error, group string) error
}

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// Consumer reads one topic as part of a consumer group and commits each
// message after it was handled, dead-lettered or found undecodable.
type Consumer struct {
	reader    messageReader
	handler   Handler
	dlq       deadLetterer
	topic     string
	group     string
	logger    *slog.Logger
	backoff   func(attempt int) time.Duration
	closeOnce sync.Once
}

type ConsumerOption func(*Consumer)

// WithDLQ routes messages that exhaust their retries to d.
func WithDLQ(d *DLQProducer) ConsumerOption {
	return func(c *Consumer) { c.dlq = d }
}

func NewConsumer(cfg ConsumerConfig, handler Handler, l *slog.Logger, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg, handler, l, opts...)
}

func newConsumer(r messageReader, cfg ConsumerConfig, handler Handler, l *slog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:  r,
		handler: handler,
		topic:   cfg.Topic,
		group:   cfg.GroupID,
		logger:  l,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt) * 100 * time.Millisecond },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)
	defer func() {
		c.logger.Info("consumer stopping", slog.String("topic", c.topic))
		_ = c.Close()
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.ErrorContext(ctx, "failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		ConsumerMessagesReceived.WithLabelValues(c.topic, c.group).Inc()

		if !c.process(ctx, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "failed to commit message",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process handles one message and reports whether it may be committed. It
// returns false only when ctx was canceled mid-retry.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "dropping undecodable message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return true
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg.Headers))
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.event_type", event.EventType),
			attribute.String("messaging.consumer.group.name", c.group),
		),
	)
	defer span.End()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		c.logger.WarnContext(ctx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxHandlerRetries),
			slog.String("error", lastErr.Error()),
		)
		if attempt == maxHandlerRetries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff(attempt)):
		}
	}
	ConsumerProcessingDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())

	if lastErr == nil {
		ConsumerMessagesProcessed.WithLabelValues(c.topic, c.group).Inc()
		return true
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	ConsumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()

	if c.dlq != nil {
		err := c.dlq.Publish(ctx, msg, lastErr, c.group)
		if err == nil {
			ConsumerDLQPublished.WithLabelValues(c.topic, c.group).Inc()
			return true
		}
		c.logger.ErrorContext(ctx, "failed to dead-letter message", slog.String("error", err.Error()))
	}
	c.logger.ErrorContext(ctx, "handler failed after all retries, skipping message",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.Int64("offset", msg.Offset),
		slog.String("error", lastErr.Error()),
	)
	return true
}

// Close is safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}
