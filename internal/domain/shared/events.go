package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Every action the console applies yields exactly one of
// the action events below; the remaining types are emitted by supporting
// components (stats audit, intent lifecycle).
const (
	// Student events
	EventStudentApproved  EventType = "student.approved"
	EventStudentRejected  EventType = "student.rejected"
	EventStudentSuspended EventType = "student.suspended"
	EventStudentActivated EventType = "student.activated"
	EventStudentDeleted   EventType = "student.deleted"

	// Instructor events
	EventInstructorApproved  EventType = "instructor.approved"
	EventInstructorRejected  EventType = "instructor.rejected"
	EventInstructorSuspended EventType = "instructor.suspended"
	EventInstructorActivated EventType = "instructor.activated"

	// Payout events
	EventPaymentTransferred EventType = "payout.transferred"

	// Inbox events
	EventMessageSent          EventType = "inbox.message_sent"
	EventConversationRead     EventType = "inbox.conversation_read"
	EventConversationResolved EventType = "inbox.conversation_resolved"

	// Catalog events
	EventPackageApproved          EventType = "catalog.package_approved"
	EventPackageRejected          EventType = "catalog.package_rejected"
	EventPackageCommissionUpdated EventType = "catalog.commission_updated"
	EventPackageDeleted           EventType = "catalog.package_deleted"

	// Settings events
	EventSettingsUpdated EventType = "settings.updated"

	// System events
	EventStatsDriftDetected EventType = "system.stats_drift_detected"
	EventIntentExpired      EventType = "system.intent_expired"
)

// ActionEventTypes lists the event types emitted for applied console actions.
func ActionEventTypes() []EventType {
	return []EventType{
		EventStudentApproved, EventStudentRejected, EventStudentSuspended, EventStudentActivated, EventStudentDeleted,
		EventInstructorApproved, EventInstructorRejected, EventInstructorSuspended, EventInstructorActivated,
		EventPaymentTransferred,
		EventMessageSent, EventConversationRead, EventConversationResolved,
		EventPackageApproved, EventPackageRejected, EventPackageCommissionUpdated, EventPackageDeleted,
		EventSettingsUpdated,
	}
}

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// Correlation returns the correlation ID, if any.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Action Events
// ═══════════════════════════════════════════════════════════════════════════

// ActionAppliedEvent is emitted by the store after an action changed state.
type ActionAppliedEvent struct {
	BaseEvent
	Action   string                 `json:"action"`
	Revision uint64                 `json:"revision"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Payload implements Event interface.
func (e ActionAppliedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"action":   e.Action,
		"revision": e.Revision,
	}
	for k, v := range e.Details {
		p[k] = v
	}
	return p
}

// NewActionAppliedEvent creates a new ActionAppliedEvent.
func NewActionAppliedEvent(eventType EventType, targetID, action string, revision uint64, at time.Time) ActionAppliedEvent {
	return ActionAppliedEvent{
		BaseEvent: NewBaseEvent(eventType, targetID, at),
		Action:    action,
		Revision:  revision,
	}
}

// WithDetail attaches an extra payload field.
func (e ActionAppliedEvent) WithDetail(key string, value interface{}) ActionAppliedEvent {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// StatsDriftDetectedEvent is emitted when incrementally maintained dashboard
// counters disagree with a full recomputation.
type StatsDriftDetectedEvent struct {
	BaseEvent
	Revision uint64   `json:"revision"`
	Fields   []string `json:"fields"`
	Source   string   `json:"source"` // "audit" or "reconcile"
}

// Payload implements Event interface.
func (e StatsDriftDetectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"revision": e.Revision,
		"fields":   e.Fields,
		"source":   e.Source,
	}
}

// NewStatsDriftDetectedEvent creates a new StatsDriftDetectedEvent.
func NewStatsDriftDetectedEvent(revision uint64, fields []string, source string, at time.Time) StatsDriftDetectedEvent {
	return StatsDriftDetectedEvent{
		BaseEvent: NewBaseEvent(EventStatsDriftDetected, "dashboard", at),
		Revision:  revision,
		Fields:    fields,
		Source:    source,
	}
}

// IntentExpiredEvent is emitted when a proposed command was never confirmed.
type IntentExpiredEvent struct {
	BaseEvent
	Action    string    `json:"action"`
	TargetID  string    `json:"target_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Payload implements Event interface.
func (e IntentExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"action":     e.Action,
		"target_id":  e.TargetID,
		"expires_at": e.ExpiresAt.Format(time.RFC3339),
	}
}

// NewIntentExpiredEvent creates a new IntentExpiredEvent.
func NewIntentExpiredEvent(intentID, action, targetID string, expiresAt, at time.Time) IntentExpiredEvent {
	return IntentExpiredEvent{
		BaseEvent: NewBaseEvent(EventIntentExpired, intentID, at),
		Action:    action,
		TargetID:  targetID,
		ExpiresAt: expiresAt,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
