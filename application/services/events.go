package services

import (
	"context"

	"collective-rides/application/ports"
	"collective-rides/domain/events"
	"go.uber.org/zap"
)

// eventEmitter publishes after a successful write. Failures are logged and never
// fail the use case, because the write has already been committed.
type eventEmitter struct {
	publisher ports.EventPublisher
	logger    *zap.Logger
}

func (e eventEmitter) emit(ctx context.Context, evts ...events.DomainEvent) {
	if e.publisher == nil || len(evts) == 0 {
		return
	}

	var err error
	if len(evts) == 1 {
		err = e.publisher.Publish(ctx, evts[0])
	} else {
		err = e.publisher.PublishBatch(ctx, evts)
	}
	if err != nil {
		e.logger.Warn("Failed to publish domain events",
			zap.String("eventType", evts[0].GetEventType()),
			zap.Int("count", len(evts)),
			zap.Error(err),
		)
	}
}
