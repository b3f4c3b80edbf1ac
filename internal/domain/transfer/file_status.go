package transfer

// FileStatusKind enumerates the remote states a file can be observed in.
type FileStatusKind uint8

const (
	FileStatusKindUnspecified FileStatusKind = iota
	FileStatusKindNotFound
	FileStatusKindUnknown
	FileStatusKindQueued
	FileStatusKindProcessing
	FileStatusKindRejected
	FileStatusKindAccepted
)

func (k FileStatusKind) String() string {
	switch k {
	case FileStatusKindNotFound:
		return "NOT_FOUND"
	case FileStatusKindUnknown:
		return "UNKNOWN"
	case FileStatusKindQueued:
		return "QUEUED"
	case FileStatusKindProcessing:
		return "PROCESSING"
	case FileStatusKindRejected:
		return "REJECTED"
	case FileStatusKindAccepted:
		return "ACCEPTED"
	default:
		return "UNSPECIFIED"
	}
}

// FileStatus is the status of a file as seen by the archive side. It is never
// persisted; every reconciliation pass recomputes it.
type FileStatus struct {
	kind        FileStatusKind
	checksum    Checksum
	hasChecksum bool
	message     string
}

// FileStatusNotFound is reported when neither remote service knows the file.
func FileStatusNotFound() FileStatus { return FileStatus{kind: FileStatusKindNotFound} }

// FileStatusUnknown is reported when the status could not be determined.
func FileStatusUnknown(message string) FileStatus {
	return FileStatus{kind: FileStatusKindUnknown, message: message}
}

// FileStatusQueued is reported while the file waits in the e-transfer pickup queue.
func FileStatusQueued() FileStatus { return FileStatus{kind: FileStatusKindQueued} }

// FileStatusProcessing is reported while the e-transfer pipeline works on the file.
func FileStatusProcessing() FileStatus { return FileStatus{kind: FileStatusKindProcessing} }

// FileStatusRejected is reported when the pipeline refused or failed the file.
func FileStatusRejected(message string) FileStatus {
	return FileStatus{kind: FileStatusKindRejected, message: message}
}

// FileStatusAccepted is reported once the archive holds the file with the given checksum.
func FileStatusAccepted(crc Checksum) FileStatus {
	return FileStatus{kind: FileStatusKindAccepted, checksum: crc, hasChecksum: true}
}

// FileStatusAcceptedWithoutChecksum is an ACCEPTED status carrying only a diagnostic.
func FileStatusAcceptedWithoutChecksum(message string) FileStatus {
	return FileStatus{kind: FileStatusKindAccepted, message: message}
}

func (s FileStatus) Kind() FileStatusKind { return s.kind }
func (s FileStatus) Message() string      { return s.message }

// Checksum returns the archive checksum, if one was reported.
func (s FileStatus) Checksum() (Checksum, bool) { return s.checksum, s.hasChecksum }

// IsTerminal reports whether the archive will take no further automatic action
// on this version of the file. QUEUED and PROCESSING are still in flight.
func (s FileStatus) IsTerminal() bool {
	switch s.kind {
	case FileStatusKindQueued, FileStatusKindProcessing:
		return false
	default:
		return true
	}
}

func (s FileStatus) String() string {
	out := s.kind.String()
	if s.hasChecksum {
		out += "(" + s.checksum.String() + ")"
	}
	if s.message != "" {
		out += ": " + s.message
	}
	return out
}
