package streaming

import (
	"context"

	"appguard-lab/internal/domain/models"
	"appguard-lab/internal/domain/services"
)

// EventBusPublisher implements services.ScanEventPublisher on the EventBus
type EventBusPublisher struct {
	eventBus *EventBus
}

var _ services.ScanEventPublisher = (*EventBusPublisher)(nil)

// NewEventBusPublisher creates a new publisher adapter
func NewEventBusPublisher(eventBus *EventBus) *EventBusPublisher {
	return &EventBusPublisher{eventBus: eventBus}
}

// PublishScanProgress publishes a per-app progress event
func (p *EventBusPublisher) PublishScanProgress(ctx context.Context, deviceID string, progress models.ScanProgress) error {
	return p.eventBus.Publish(ctx, NewProgressEvent(deviceID, progress))
}

// PublishScanCompleted publishes the final summary of a scan
func (p *EventBusPublisher) PublishScanCompleted(ctx context.Context, summary *models.ScanSummary) error {
	return p.eventBus.Publish(ctx, NewCompletedEvent(summary))
}
