package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseAggregateRoot carries identity, timestamps and the optimistic lock
// version of an aggregate, plus the events raised since it was loaded.
//
// Version starts at 1 and grows by one with every state change. Repositories
// only write a row whose stored version is the one the aggregate was read at.
type BaseAggregateRoot struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int

	events []DomainEvent
}

// NewBaseAggregateRoot returns a root with a fresh ID at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now()
	return BaseAggregateRoot{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Touch records a state change made at now
func (a *BaseAggregateRoot) Touch(now time.Time) {
	a.UpdatedAt = now
	a.Version++
}

// RecordEvent queues an event for publication after the next save
func (a *BaseAggregateRoot) RecordEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// PendingEvents returns the queued events in the order they were raised
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.events
}

// ClearEvents drops the queued events
func (a *BaseAggregateRoot) ClearEvents() {
	a.events = nil
}
