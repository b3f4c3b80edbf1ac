package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
)

const (
	// EventTypeDatasetStatusChanged is emitted after a guarded transition is applied.
	EventTypeDatasetStatusChanged events.EventType = "DatasetStatusChanged"

	// EventTypeDatasetCopyDispatched is emitted when a file is handed to the copy subsystem.
	EventTypeDatasetCopyDispatched events.EventType = "DatasetCopyDispatched"
)

// DatasetStatusChangedEvent records one applied local state transition.
type DatasetStatusChangedEvent struct {
	id         uuid.UUID
	occurredAt time.Time
	Dataset    DatasetFile
	From       DatasetStatus
	To         DatasetStatus
}

// NewDatasetStatusChangedEvent creates a DatasetStatusChangedEvent.
func NewDatasetStatusChangedEvent(ds DatasetFile, from, to DatasetStatus) DatasetStatusChangedEvent {
	return DatasetStatusChangedEvent{
		id:         uuid.New(),
		occurredAt: time.Now(),
		Dataset:    ds,
		From:       from,
		To:         to,
	}
}

func (e DatasetStatusChangedEvent) EventID() uuid.UUID        { return e.id }
func (e DatasetStatusChangedEvent) EventType() events.EventType { return EventTypeDatasetStatusChanged }
func (e DatasetStatusChangedEvent) OccurredAt() time.Time       { return e.occurredAt }

// DatasetCopyDispatchedEvent records that a copy to the pickup area started.
type DatasetCopyDispatchedEvent struct {
	id         uuid.UUID
	occurredAt time.Time
	Dataset    DatasetFile
	Path       string
}

// NewDatasetCopyDispatchedEvent creates a DatasetCopyDispatchedEvent.
func NewDatasetCopyDispatchedEvent(ds DatasetFile, path string) DatasetCopyDispatchedEvent {
	return DatasetCopyDispatchedEvent{
		id:         uuid.New(),
		occurredAt: time.Now(),
		Dataset:    ds,
		Path:       path,
	}
}

func (e DatasetCopyDispatchedEvent) EventID() uuid.UUID        { return e.id }
func (e DatasetCopyDispatchedEvent) EventType() events.EventType { return EventTypeDatasetCopyDispatched }
func (e DatasetCopyDispatchedEvent) OccurredAt() time.Time       { return e.occurredAt }
