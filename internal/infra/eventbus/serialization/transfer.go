package serialization

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

// StatusChange is the decoded form of a DatasetStatusChanged event.
type StatusChange struct {
	EventID string
	Dataset transfer.DatasetFile
	From    transfer.DatasetStatus
	To      transfer.DatasetStatus
}

// CopyDispatch is the decoded form of a DatasetCopyDispatched event.
type CopyDispatch struct {
	EventID string
	Dataset transfer.DatasetFile
	Path    string
}

func registerTransferEvents() {
	RegisterSerializeFunc(transfer.EventTypeDatasetStatusChanged, serializeStatusChanged)
	RegisterDeserializeFunc(transfer.EventTypeDatasetStatusChanged, deserializeStatusChanged)
	RegisterSerializeFunc(transfer.EventTypeDatasetCopyDispatched, serializeCopyDispatched)
	RegisterDeserializeFunc(transfer.EventTypeDatasetCopyDispatched, deserializeCopyDispatched)
}

func serializeStatusChanged(payload any) (*structpb.Struct, error) {
	var evt transfer.DatasetStatusChangedEvent
	switch p := payload.(type) {
	case transfer.DatasetStatusChangedEvent:
		evt = p
	case *transfer.DatasetStatusChangedEvent:
		evt = *p
	default:
		return nil, fmt.Errorf("expected DatasetStatusChangedEvent, got %T", payload)
	}

	return structpb.NewStruct(map[string]any{
		"event_id": evt.EventID().String(),
		"label":    evt.Dataset.Label(),
		"filename": evt.Dataset.Filename(),
		"from":     evt.From.String(),
		"to":       evt.To.String(),
	})
}

func deserializeStatusChanged(fields *structpb.Struct) (any, error) {
	f := fields.GetFields()
	ds, err := transfer.NewDatasetFile(f["label"].GetStringValue(), f["filename"].GetStringValue())
	if err != nil {
		return nil, err
	}
	from, err := transfer.ParseDatasetStatus(f["from"].GetStringValue())
	if err != nil {
		return nil, err
	}
	to, err := transfer.ParseDatasetStatus(f["to"].GetStringValue())
	if err != nil {
		return nil, err
	}
	return StatusChange{EventID: f["event_id"].GetStringValue(), Dataset: ds, From: from, To: to}, nil
}

func serializeCopyDispatched(payload any) (*structpb.Struct, error) {
	var evt transfer.DatasetCopyDispatchedEvent
	switch p := payload.(type) {
	case transfer.DatasetCopyDispatchedEvent:
		evt = p
	case *transfer.DatasetCopyDispatchedEvent:
		evt = *p
	default:
		return nil, fmt.Errorf("expected DatasetCopyDispatchedEvent, got %T", payload)
	}

	return structpb.NewStruct(map[string]any{
		"event_id": evt.EventID().String(),
		"label":    evt.Dataset.Label(),
		"filename": evt.Dataset.Filename(),
		"path":     evt.Path,
	})
}

func deserializeCopyDispatched(fields *structpb.Struct) (any, error) {
	f := fields.GetFields()
	ds, err := transfer.NewDatasetFile(f["label"].GetStringValue(), f["filename"].GetStringValue())
	if err != nil {
		return nil, err
	}
	return CopyDispatch{EventID: f["event_id"].GetStringValue(), Dataset: ds, Path: f["path"].GetStringValue()}, nil
}
