package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/alo17/ilan-backend/pkg/config"
	"github.com/alo17/ilan-backend/pkg/logger"
)

const breakerName = "notifications-publish"

// messagePublisher sends one encoded message and returns the broker message id.
type messagePublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// PubSubDispatcher publishes events asynchronously behind a circuit breaker.
type PubSubDispatcher struct {
	publisher messagePublisher
	breaker   *gobreaker.CircuitBreaker[string]
	timeout   time.Duration
	logg      *logger.Logger
	wg        sync.WaitGroup
	now       func() time.Time
}

// NewPubSubDispatcher wires the publisher with breaker settings from config.
func NewPubSubDispatcher(publisher messagePublisher, cfg config.NotificationsConfig, logg *logger.Logger) (*PubSubDispatcher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("notification publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := &PubSubDispatcher{
		publisher: publisher,
		timeout:   timeout,
		logg:      logg,
		now:       time.Now,
	}
	d.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    cfg.BreakerCountsWindow,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "notification breaker state changed")
		},
	})
	return d, nil
}

// Dispatch publishes in the background. The request context only contributes its
// values; its cancellation does not abort delivery.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now().UTC()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.publish(pubCtx, event); err != nil {
			logCtx := d.logg.WithFields(pubCtx, map[string]any{
				"event_type": string(event.Type),
				"event_id":   event.ID,
				"listing_id": event.ListingID,
			})
			d.logg.Error(logCtx, "notification publish failed", err)
		}
	}()
}

func (d *PubSubDispatcher) publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	attrs := map[string]string{
		"event_type": string(event.Type),
		"event_id":   event.ID,
	}
	_, err = d.breaker.Execute(func() (string, error) {
		return d.publisher.Publish(ctx, payload, attrs)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("notification breaker open: %w", err)
	}
	return err
}

// State reports the breaker state.
func (d *PubSubDispatcher) State() gobreaker.State {
	return d.breaker.State()
}

// Close waits for in-flight publishes until ctx is done.
func (d *PubSubDispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
