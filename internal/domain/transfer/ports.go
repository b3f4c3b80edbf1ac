package transfer

import (
	"context"
	"time"
)

// DefaultChecksumBatchTimeout bounds a batch checksum lookup when no other
// budget is configured.
const DefaultChecksumBatchTimeout = 300 * time.Second

// StatusLookup is one resolved e-transfer answer. Found is false when the
// e-transfer system has no entry for the file.
type StatusLookup struct {
	Status FileStatus
	Found  bool
}

// ChecksumLookup is one resolved CRC registry answer. Found is false when the
// archive does not hold the file.
type ChecksumLookup struct {
	Checksum Checksum
	Found    bool
}

// TransferStatusQuerier looks up files in the e-transfer queue system and
// translates the answers into FileStatus values.
type TransferStatusQuerier interface {
	// TransferStatus returns the translated status of one file. The boolean is
	// false when the e-transfer system has no entry for it.
	TransferStatus(ctx context.Context, filename string) (FileStatus, bool, error)

	// TransferStatuses resolves many files in one round trip. Files the
	// service failed to answer are absent from the result; a failure for one
	// file never prevents the others from resolving.
	TransferStatuses(ctx context.Context, filenames []string) (map[string]StatusLookup, error)
}

// ChecksumQuerier looks up archive checksums for files already ingested.
type ChecksumQuerier interface {
	// Checksum returns the archive checksum for one file. The boolean is false
	// when the archive does not hold the file.
	Checksum(ctx context.Context, filename string) (Checksum, bool, error)

	// Checksums resolves many files within timeout. Files that could not be
	// resolved in time, or whose lookup failed, are absent from the result.
	Checksums(ctx context.Context, filenames []string, timeout time.Duration) map[string]ChecksumLookup
}

// StateQueryRunner produces a snapshot of datasets currently in the requested
// local states.
type StateQueryRunner interface {
	QueryStates(ctx context.Context, statuses []DatasetStatus) (StateSnapshot, error)
}

// StatusUpdater applies guarded transfer state changes.
type StatusUpdater interface {
	// UpdateStatus moves ds from expected to next. When the stored state no
	// longer equals expected the call changes nothing and reports applied=false
	// with a nil error.
	UpdateStatus(ctx context.Context, ds DatasetFile, expected, next DatasetStatus) (applied bool, err error)
}

// DatasetRepository is the storage contract a single shard satisfies.
type DatasetRepository interface {
	StateQueryRunner
	StatusUpdater
}

// TransferDispatcher hands files to the copy subsystem and reports which
// datasets it is still working on.
type TransferDispatcher interface {
	// BeginCopy starts copying path to the e-transfer pickup area on behalf of
	// ds. It returns once the work is accepted, not when the copy finishes.
	BeginCopy(ctx context.Context, ds DatasetFile, path string) error

	// IsInFlight reports whether an operation for ds is still in progress.
	IsInFlight(ds DatasetFile) bool
}

// ArchivePolicy decides whether a dataset should be archived at all.
type ArchivePolicy interface {
	IsArchivable(ds DatasetFile) bool
}

// LocalFiles resolves archive candidates on local disk.
type LocalFiles interface {
	// Path returns the location of filename in the working directory.
	Path(filename string) string

	// Exists reports whether filename is present in the working directory.
	Exists(filename string) (bool, error)

	// Checksum computes the CRC of filename. It returns an error wrapping
	// fs.ErrNotExist when the file is missing and ctx.Err() when interrupted.
	Checksum(ctx context.Context, filename string) (Checksum, error)
}
