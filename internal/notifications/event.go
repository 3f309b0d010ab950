package notifications

import (
	"context"
	"time"

	"github.com/alo17/ilan-backend/pkg/enums"
	"github.com/alo17/ilan-backend/pkg/logger"
)

// Event is a listing lifecycle notification handed to the delivery service.
type Event struct {
	ID         string                 `json:"id"`
	Type       enums.ListingEventType `json:"type"`
	ListingID  string                 `json:"listingId"`
	UserID     string                 `json:"userId"`
	ActorID    string                 `json:"actorId,omitempty"`
	Data       map[string]any         `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Dispatcher hands events to delivery. Dispatch never blocks the caller on delivery
// and never reports delivery errors back.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// LogDispatcher records events in the log when no delivery transport is configured.
type LogDispatcher struct {
	logg *logger.Logger
}

// NewLogDispatcher builds a dispatcher that only logs.
func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event Event) {
	if d == nil || d.logg == nil {
		return
	}
	ctx = d.logg.WithFields(ctx, map[string]any{
		"event_type": string(event.Type),
		"listing_id": event.ListingID,
		"user_id":    event.UserID,
	})
	d.logg.Info(ctx, "notification skipped: no transport configured")
}
