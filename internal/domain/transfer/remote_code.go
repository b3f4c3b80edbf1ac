package transfer

import (
	"errors"
	"fmt"
	"strings"
)

// RemoteCode is a raw status code reported by the e-transfer service.
type RemoteCode string

const (
	RemoteCodeNotFound       RemoteCode = "not-found"
	RemoteCodeSuccess        RemoteCode = "success"
	RemoteCodeUnknown        RemoteCode = "unknown"
	RemoteCodePickup         RemoteCode = "pickup"
	RemoteCodePreprocessing  RemoteCode = "preprocessing"
	RemoteCodePostprocessing RemoteCode = "postprocessing"
	RemoteCodeTransferring   RemoteCode = "transferring"
	RemoteCodeTransferred    RemoteCode = "transferred"
	RemoteCodeRejected       RemoteCode = "rejected"
	RemoteCodeErrored        RemoteCode = "errored"
	RemoteCodeFailed         RemoteCode = "failed"
)

// ErrUnrecognizedRemoteCode is returned for a remote code outside the known
// vocabulary. It indicates a contract violation between this service and the
// e-transfer system and is never retried.
var ErrUnrecognizedRemoteCode = errors.New("unrecognized e-transfer status code")

// RemoteStatus is one raw e-transfer answer for a file.
type RemoteStatus struct {
	Code    RemoteCode
	Message string
}

// remoteStatusTable maps each remote code onto the internal vocabulary. A zero
// kind means "no entry": the caller falls through to the checksum registry.
var remoteStatusTable = map[RemoteCode]FileStatusKind{
	RemoteCodeNotFound:       FileStatusKindUnspecified,
	RemoteCodeSuccess:        FileStatusKindUnspecified,
	RemoteCodeUnknown:        FileStatusKindUnknown,
	RemoteCodePickup:         FileStatusKindQueued,
	RemoteCodePreprocessing:  FileStatusKindProcessing,
	RemoteCodePostprocessing: FileStatusKindProcessing,
	RemoteCodeTransferring:   FileStatusKindProcessing,
	RemoteCodeTransferred:    FileStatusKindProcessing,
	RemoteCodeRejected:       FileStatusKindRejected,
	RemoteCodeErrored:        FileStatusKindRejected,
	RemoteCodeFailed:         FileStatusKindRejected,
}

// Translate converts a raw e-transfer answer into a FileStatus. The boolean is
// false when the code carries no e-transfer entry (not-found, success).
func (r RemoteStatus) Translate() (FileStatus, bool, error) {
	code := RemoteCode(strings.ToLower(strings.TrimSpace(string(r.Code))))
	kind, ok := remoteStatusTable[code]
	if !ok {
		return FileStatus{}, false, fmt.Errorf("%w: %q", ErrUnrecognizedRemoteCode, r.Code)
	}

	switch kind {
	case FileStatusKindUnspecified:
		return FileStatus{}, false, nil
	case FileStatusKindUnknown:
		return FileStatusUnknown(r.Message), true, nil
	case FileStatusKindRejected:
		return FileStatusRejected(r.Message), true, nil
	default:
		return FileStatus{kind: kind}, true, nil
	}
}
