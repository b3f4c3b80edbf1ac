package transfer

import "errors"

// ErrUnexpectedFileStatus is returned when reconciliation meets a FileStatus
// outside the translated vocabulary.
var ErrUnexpectedFileStatus = errors.New("unexpected file status")

// updateTransitions is the target local state for an in-flight dataset
// (QUEUED, TRANSFERRING, TRANSFER_ERROR) given its remote status. ACCEPTED is
// absent: it requires a checksum comparison, see AcceptedTransition.
var updateTransitions = map[FileStatusKind]DatasetStatus{
	FileStatusKindUnknown:    DatasetStatusTransferError,
	FileStatusKindNotFound:   DatasetStatusPending,
	FileStatusKindQueued:     DatasetStatusQueued,
	FileStatusKindProcessing: DatasetStatusTransferring,
	FileStatusKindRejected:   DatasetStatusRejected,
}

// UpdateTransition returns the local state an in-flight dataset moves to for a
// non-ACCEPTED remote status. A missing remote status is treated as UNKNOWN.
// ok is false for ACCEPTED; an unrecognized kind yields ErrUnexpectedFileStatus.
func UpdateTransition(status FileStatus, known bool) (next DatasetStatus, ok bool, err error) {
	if !known {
		return DatasetStatusTransferError, true, nil
	}
	if status.Kind() == FileStatusKindAccepted {
		return "", false, nil
	}
	next, found := updateTransitions[status.Kind()]
	if !found {
		return "", false, ErrUnexpectedFileStatus
	}
	return next, true, nil
}

// ChecksumOutcome is the result of comparing a local file against the
// checksum the archive reported.
type ChecksumOutcome uint8

const (
	ChecksumMatch ChecksumOutcome = iota
	ChecksumMismatch
	ChecksumLocalMissing
	ChecksumLocalError
)

// acceptedTransitions maps a checksum comparison onto the local state an
// ACCEPTED remote file moves the dataset to.
var acceptedTransitions = map[ChecksumOutcome]DatasetStatus{
	ChecksumMatch:        DatasetStatusAccepted,
	ChecksumMismatch:     DatasetStatusPending,
	ChecksumLocalMissing: DatasetStatusAccepted,
	ChecksumLocalError:   DatasetStatusTransferError,
}

// AcceptedTransition returns the local state for an ACCEPTED remote file.
func AcceptedTransition(outcome ChecksumOutcome) DatasetStatus {
	return acceptedTransitions[outcome]
}
