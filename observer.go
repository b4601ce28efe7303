// Package looper provides CloudEvents-based lifecycle notifications.
// Observers registered on the builder receive standardized events for
// build and run-loop milestones, giving surrounding tooling a uniform
// event format without coupling it to the core.
package looper

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// ObserverFunc receives lifecycle events emitted by the application.
// Observers should return quickly; a failing observer is logged and
// never aborts the run loop.
type ObserverFunc func(ctx context.Context, event cloudevents.Event) error

// Lifecycle event types emitted by the application.
const (
	EventTypeApplicationBuilt = "com.gocodealone.looper.application.built"
	EventTypeCycleCompleted   = "com.gocodealone.looper.cycle.completed"
	EventTypeSystemFailed     = "com.gocodealone.looper.system.failed"
	EventTypeRunStopped       = "com.gocodealone.looper.run.stopped"
	EventTypeConfigReloaded   = "com.gocodealone.looper.config.reloaded"
)

// eventSource identifies this core as the emitter of lifecycle events.
const eventSource = "looper"

// NewLifecycleEvent creates a properly formatted CloudEvent for the given
// lifecycle milestone.
func NewLifecycleEvent(eventType string, data interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(eventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// generateEventID generates a unique identifier for lifecycle events using
// UUIDv7, which includes timestamp information for time-ordered uniqueness.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails for any reason
		id = uuid.New()
	}
	return id.String()
}
