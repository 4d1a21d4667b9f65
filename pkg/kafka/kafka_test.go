package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/utafrali/storefront/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	return NewHeaderCarrier(&msg.Headers).Get(key)
}

// --- Event ---

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.product.deleted", Topic("product", "deleted"))
	assert.Equal(t, "ecommerce.dlq.ecommerce.product.deleted", DLQTopic(Topic("product", "deleted")))
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent("wishlist.item_added", "u1", "user", "storefront", map[string]string{"product_id": "p1"})
	require.NoError(t, err)

	assert.Len(t, event.EventID, 36)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var payload map[string]string
	require.NoError(t, event.UnmarshalData(&payload))
	assert.Equal(t, "p1", payload["product_id"])

	_, err = NewEvent("bad", "x", "x", "x", make(chan int))
	assert.Error(t, err)
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}

// --- Carrier ---

func TestKafkaHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "v3")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.ElementsMatch(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, headers, 2)
}

// --- Producer ---

func TestProducer_Publish(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}

	event, err := NewEvent("product.deleted", "p1", "product", "storefront", nil)
	require.NoError(t, err)
	ctx := logger.WithCorrelationID(context.Background(), "corr-9")

	require.NoError(t, p.Publish(ctx, Topic("product", "deleted"), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "ecommerce.product.deleted", msg.Topic)
	assert.Equal(t, []byte("p1"), msg.Key)
	assert.Equal(t, "product.deleted", header(msg, "event_type"))
	assert.Equal(t, "corr-9", header(msg, "correlation_id"))
	assert.NotEmpty(t, header(msg, "traceparent"))

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "corr-9", decoded.CorrelationID)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Producer{writer: w, logger: testLogger()}

	event, err := NewEvent("user.registered", "u1", "user", "storefront", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), Topic("user", "registered"), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to ecommerce.user.registered")
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

// --- DLQ ---

func TestDLQProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	d := &DLQProducer{writer: w, logger: testLogger()}

	original := kafka.Message{
		Topic: "ecommerce.product.deleted", Partition: 2, Offset: 41,
		Key: []byte("p1"), Value: []byte(`{}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("product.deleted")}},
	}
	require.NoError(t, d.Publish(context.Background(), original, errors.New("store down"), "storefront"))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "ecommerce.dlq.ecommerce.product.deleted", msg.Topic)
	assert.Equal(t, "2", header(msg, "dlq.original_partition"))
	assert.Equal(t, "41", header(msg, "dlq.original_offset"))
	assert.Equal(t, "store down", header(msg, "dlq.error"))
	assert.Equal(t, "product.deleted", header(msg, "event_type"))
}

// --- Consumer ---

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return kafka.Message{}, errors.New("EOF")
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeDLQ struct {
	msgs []kafka.Message
}

func (d *fakeDLQ) Publish(_ context.Context, msg kafka.Message, _ error, _ string) error {
	d.msgs = append(d.msgs, msg)
	return nil
}

func eventMessage(t *testing.T, offset int64) kafka.Message {
	t.Helper()
	event, err := NewEvent("product.deleted", "p1", "product", "storefront", nil)
	require.NoError(t, err)
	value, err := event.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: "ecommerce.product.deleted", Offset: offset, Value: value}
}

func newTestConsumer(h Handler) *Consumer {
	c := newConsumer(&fakeReader{}, ConsumerConfig{Topic: "ecommerce.product.deleted", GroupID: "storefront"}, h, testLogger())
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func TestConsumer_Process_Success(t *testing.T) {
	calls := 0
	c := newTestConsumer(func(context.Context, *Event) error {
		calls++
		return nil
	})

	assert.True(t, c.process(context.Background(), eventMessage(t, 1)))
	assert.Equal(t, 1, calls)
}

func TestConsumer_Process_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	c := newTestConsumer(func(context.Context, *Event) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	assert.True(t, c.process(context.Background(), eventMessage(t, 1)))
	assert.Equal(t, 2, calls)
}

func TestConsumer_Process_ExhaustedGoesToDLQ(t *testing.T) {
	dlq := &fakeDLQ{}
	calls := 0
	c := newTestConsumer(func(context.Context, *Event) error {
		calls++
		return errors.New("permanent")
	})
	c.dlq = dlq

	assert.True(t, c.process(context.Background(), eventMessage(t, 7)))
	assert.Equal(t, maxHandlerRetries, calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, int64(7), dlq.msgs[0].Offset)
}

func TestConsumer_Process_Undecodable(t *testing.T) {
	c := newTestConsumer(func(context.Context, *Event) error {
		t.Fatal("handler must not run")
		return nil
	})

	assert.True(t, c.process(context.Background(), kafka.Message{Value: []byte("garbage")}))
}

func TestConsumer_Process_CorrelationIDInContext(t *testing.T) {
	var got string
	c := newTestConsumer(func(ctx context.Context, _ *Event) error {
		got = logger.CorrelationIDFromContext(ctx)
		return nil
	})

	event, err := NewEvent("product.deleted", "p1", "product", "storefront", nil)
	require.NoError(t, err)
	event.WithCorrelationID("corr-42")
	value, err := event.Marshal()
	require.NoError(t, err)

	c.process(context.Background(), kafka.Message{Value: value})
	assert.Equal(t, "corr-42", got)
}

func TestConsumer_Start_CommitsAndStops(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{eventMessage(t, 1), eventMessage(t, 2)}}
	ctx, cancel := context.WithCancel(context.Background())

	handled := 0
	c := newConsumer(reader, ConsumerConfig{Topic: "t", GroupID: "g"}, func(context.Context, *Event) error {
		handled++
		if handled == 2 {
			cancel()
		}
		return nil
	}, testLogger())

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, 2, handled)
	assert.Equal(t, []int64{1, 2}, reader.committed)
}

// --- Idempotency ---

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "e1"))
	ok, err := s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisIdempotencyStore(client, "storefront:events:", time.Hour)
	ctx := context.Background()

	ok, err := s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Add(ctx, "e1"))
	ok, err = s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("storefront:events:e1"))

	mr.FastForward(2 * time.Hour)
	ok, err = s.Contains(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotentHandler(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	event := &Event{EventID: "e1", EventType: "product.deleted"}
	require.NoError(t, h(context.Background(), event))
	require.NoError(t, h(context.Background(), event))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		return errors.New("store down")
	}, testLogger())

	require.Error(t, h(context.Background(), &Event{EventID: "e1"}))
	assert.Equal(t, 0, store.Len())
}

type brokenStore struct{}

func (brokenStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenStore) Add(context.Context, string) error { return errors.New("redis down") }

func TestIdempotentHandler_StoreFailureStillProcesses(t *testing.T) {
	calls := 0
	h := IdempotentHandler(brokenStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "e1"}))
	assert.Equal(t, 1, calls)
}
