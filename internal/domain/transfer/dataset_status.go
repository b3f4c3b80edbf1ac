package transfer

import (
	"errors"
	"fmt"
)

// DatasetStatus is the locally recorded transfer state of a dataset. The
// persistent store is the system of record for it and only ever changes it
// through guarded (compare-and-set) updates.
type DatasetStatus string

const (
	// DatasetStatusPending indicates the file should be (re)copied to the e-transfer pickup area.
	DatasetStatusPending DatasetStatus = "PENDING"

	// DatasetStatusCopyFailed indicates the last copy attempt failed locally.
	DatasetStatusCopyFailed DatasetStatus = "COPY_FAILED"

	// DatasetStatusQueued indicates the e-transfer system has picked the file up.
	DatasetStatusQueued DatasetStatus = "QUEUED"

	// DatasetStatusTransferring indicates the file is moving through the e-transfer pipeline.
	DatasetStatusTransferring DatasetStatus = "TRANSFERRING"

	// DatasetStatusTransferError indicates the remote status could not be determined.
	DatasetStatusTransferError DatasetStatus = "TRANSFER_ERROR"

	// DatasetStatusRejected indicates the archive refused the file.
	DatasetStatusRejected DatasetStatus = "REJECTED"

	// DatasetStatusAccepted indicates the archive holds a copy matching the local file.
	DatasetStatusAccepted DatasetStatus = "ACCEPTED"

	// DatasetStatusNone indicates the dataset will not be archived.
	DatasetStatusNone DatasetStatus = "NONE"
)

// ErrDatasetStatusUnknown is returned when a string does not name a DatasetStatus.
var ErrDatasetStatusUnknown = errors.New("dataset status unknown")

// String returns the string representation of the DatasetStatus.
func (s DatasetStatus) String() string { return string(s) }

// ParseDatasetStatus converts a string to a DatasetStatus.
func ParseDatasetStatus(s string) (DatasetStatus, error) {
	switch DatasetStatus(s) {
	case DatasetStatusPending,
		DatasetStatusCopyFailed,
		DatasetStatusQueued,
		DatasetStatusTransferring,
		DatasetStatusTransferError,
		DatasetStatusRejected,
		DatasetStatusAccepted,
		DatasetStatusNone:
		return DatasetStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrDatasetStatusUnknown, s)
	}
}

// InterestingStatuses returns the local states a reconciliation pass inspects.
func InterestingStatuses() []DatasetStatus {
	return []DatasetStatus{
		DatasetStatusPending,
		DatasetStatusCopyFailed,
		DatasetStatusQueued,
		DatasetStatusTransferring,
		DatasetStatusTransferError,
	}
}

// StateSnapshot groups datasets by their local transfer state.
type StateSnapshot map[DatasetStatus][]DatasetFile

// Merge appends every list in other onto s. Datasets live on exactly one
// shard, so no deduplication is performed.
func (s StateSnapshot) Merge(other StateSnapshot) {
	for status, datasets := range other {
		s[status] = append(s[status], datasets...)
	}
}

// Len returns the total number of datasets in the snapshot.
func (s StateSnapshot) Len() int {
	n := 0
	for _, datasets := range s {
		n += len(datasets)
	}
	return n
}
