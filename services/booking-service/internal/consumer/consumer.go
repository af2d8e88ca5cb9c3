package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/tenantbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates deliveries per consumer.
type Inbox interface {
	Record(ctx context.Context, consumer, eventID, eventType string) (bool, error)
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  MessageReader
	name    string
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
	backoff time.Duration
}

type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// New builds a consumer named after its group id; the name scopes inbox
// deduplication.
func New(logger *slog.Logger, reader MessageReader, inbox Inbox, name string, handler Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		name:    name,
		logger:  logger,
		inbox:   inbox,
		handler: handler,
		backoff: time.Second,
	}
}

// Run reads until ctx is cancelled. Handler failures are logged and the
// message is skipped.
func (c *Consumer) Run(ctx context.Context) {
	defer func() { _ = c.reader.Close() }()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "" {
		ok, err := c.inbox.Record(ctxSpan, c.name, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.SetStatus(codes.Error, "inbox")
			return
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			return
		}
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
	}
}
