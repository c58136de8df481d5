package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"campusmarket-be/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	defaultInbox      = 256
	defaultRetryLimit = 1000
	writeTimeout      = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes events from a background loop. Writes go
// through a circuit breaker; anything that cannot be written is parked in a
// bounded retry queue that Redeliver drains.
type KafkaDispatcher struct {
	w       messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	inbox   chan kafka.Message

	mu         sync.Mutex
	retry      []kafka.Message
	retryLimit int

	stopped atomic.Bool
	closeCh chan struct{}
}

func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newKafkaDispatcher(w, defaultInbox, defaultRetryLimit)
}

func newKafkaDispatcher(w messageWriter, inbox, retryLimit int) *KafkaDispatcher {
	d := &KafkaDispatcher{
		w:          w,
		inbox:      make(chan kafka.Message, inbox),
		retryLimit: retryLimit,
		closeCh:    make(chan struct{}),
	}

	d.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-notifications",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return d
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, events ...Event) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "notification"))

	for _, e := range events {
		msg, err := encode(e)
		if err != nil {
			log.Error("failed to encode notification", zap.String("type", string(e.Type)), zap.Error(err))
			continue
		}

		if d.stopped.Load() {
			d.park(msg)
			continue
		}

		select {
		case d.inbox <- msg:
		default:
			log.Warn("notification inbox full, parking event", zap.String("event_id", e.ID))
			d.park(msg)
		}
	}
}

// Start runs the writer loop until ctx is cancelled, then flushes what is
// left in the inbox and closes the writer.
func (d *KafkaDispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.closeCh)

		for {
			select {
			case <-ctx.Done():
				d.stopped.Store(true)
				d.flush()
				if err := d.w.Close(); err != nil {
					logger.L().Error("failed to close kafka writer", zap.Error(err))
				}
				return
			case msg := <-d.inbox:
				if err := d.write(context.Background(), msg); err != nil {
					logger.L().Warn("notification write failed, parked for retry",
						zap.String("key", string(msg.Key)),
						zap.Error(err),
					)
					d.park(msg)
				}
			}
		}
	}()
}

func (d *KafkaDispatcher) flush() {
	for {
		select {
		case msg := <-d.inbox:
			if err := d.write(context.Background(), msg); err != nil {
				d.park(msg)
			}
		default:
			return
		}
	}
}

// WaitClosed blocks until the loop started by Start has exited.
func (d *KafkaDispatcher) WaitClosed() { <-d.closeCh }

// Redeliver retries parked messages once and returns how many went out.
// Messages that fail again go back to the queue.
func (d *KafkaDispatcher) Redeliver(ctx context.Context) (int, error) {
	d.mu.Lock()
	batch := d.retry
	d.retry = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	sent := 0
	var lastErr error
	for i, msg := range batch {
		if err := d.write(ctx, msg); err != nil {
			lastErr = err
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
				// broker still down; keep the rest for the next run
				for _, m := range batch[i:] {
					d.park(m)
				}
				break
			}
			d.park(msg)
			continue
		}
		sent++
	}

	return sent, lastErr
}

// Pending reports how many messages wait for redelivery.
func (d *KafkaDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.retry)
}

func (d *KafkaDispatcher) write(ctx context.Context, msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.w.WriteMessages(ctx, msg)
	})
	return err
}

func (d *KafkaDispatcher) park(msg kafka.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.retry) >= d.retryLimit {
		// oldest first out
		d.retry = d.retry[1:]
		logger.L().Warn("notification retry queue full, dropping oldest")
	}
	d.retry = append(d.retry, msg)
}

func encode(e Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
	}, nil
}
