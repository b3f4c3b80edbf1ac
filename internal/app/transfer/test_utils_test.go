package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

type mockTransferQuerier struct{ mock.Mock }

func (m *mockTransferQuerier) TransferStatus(ctx context.Context, filename string) (transfer.FileStatus, bool, error) {
	args := m.Called(ctx, filename)
	return args.Get(0).(transfer.FileStatus), args.Bool(1), args.Error(2)
}

func (m *mockTransferQuerier) TransferStatuses(ctx context.Context, filenames []string) (map[string]transfer.StatusLookup, error) {
	args := m.Called(ctx, filenames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]transfer.StatusLookup), args.Error(1)
}

type mockChecksumQuerier struct{ mock.Mock }

func (m *mockChecksumQuerier) Checksum(ctx context.Context, filename string) (transfer.Checksum, bool, error) {
	args := m.Called(ctx, filename)
	return args.Get(0).(transfer.Checksum), args.Bool(1), args.Error(2)
}

func (m *mockChecksumQuerier) Checksums(ctx context.Context, filenames []string, timeout time.Duration) map[string]transfer.ChecksumLookup {
	args := m.Called(ctx, filenames, timeout)
	return args.Get(0).(map[string]transfer.ChecksumLookup)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishDomainEvent(ctx context.Context, evt events.DomainEvent, opts ...events.PublishOption) error {
	args := m.Called(ctx, evt, opts)
	return args.Error(0)
}

// fakeRepository is an in-memory guarded store.
type fakeRepository struct {
	mu       sync.Mutex
	states   map[transfer.DatasetFile]transfer.DatasetStatus
	queryErr error
	writeErr map[transfer.DatasetFile]error

	// beforeUpdate runs ahead of each guarded write; tests use it to simulate
	// concurrent modification.
	beforeUpdate func(ds transfer.DatasetFile)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		states:   make(map[transfer.DatasetFile]transfer.DatasetStatus),
		writeErr: make(map[transfer.DatasetFile]error),
	}
}

func (r *fakeRepository) put(ds transfer.DatasetFile, status transfer.DatasetStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[ds] = status
}

func (r *fakeRepository) get(ds transfer.DatasetFile) transfer.DatasetStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[ds]
}

func (r *fakeRepository) QueryStates(_ context.Context, statuses []transfer.DatasetStatus) (transfer.StateSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queryErr != nil {
		return nil, r.queryErr
	}

	wanted := make(map[transfer.DatasetStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	snap := make(transfer.StateSnapshot)
	for ds, s := range r.states {
		if wanted[s] {
			snap[s] = append(snap[s], ds)
		}
	}
	return snap, nil
}

func (r *fakeRepository) UpdateStatus(_ context.Context, ds transfer.DatasetFile, expected, next transfer.DatasetStatus) (bool, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate(ds)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writeErr[ds]; err != nil {
		return false, err
	}
	current, ok := r.states[ds]
	if !ok || current != expected {
		return false, nil
	}
	r.states[ds] = next
	return true, nil
}

// fakeResolver answers from a fixed table.
type fakeResolver struct {
	statuses map[string]transfer.FileStatus
	err      error
	calls    [][]string
}

func (r *fakeResolver) Resolve(_ context.Context, filename string) (transfer.FileStatus, error) {
	return r.statuses[filename], r.err
}

func (r *fakeResolver) ResolveAll(_ context.Context, filenames []string) (map[string]transfer.FileStatus, error) {
	r.calls = append(r.calls, append([]string(nil), filenames...))
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]transfer.FileStatus)
	for _, f := range filenames {
		if s, ok := r.statuses[f]; ok {
			out[f] = s
		}
	}
	return out, nil
}

type copyRequest struct {
	ds   transfer.DatasetFile
	path string
}

// fakeDispatcher records copies and reports a configurable in-flight set.
type fakeDispatcher struct {
	mu       sync.Mutex
	inFlight map[transfer.DatasetFile]bool
	copies   []copyRequest
	err      error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{inFlight: make(map[transfer.DatasetFile]bool)}
}

func (d *fakeDispatcher) BeginCopy(_ context.Context, ds transfer.DatasetFile, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.copies = append(d.copies, copyRequest{ds: ds, path: path})
	return nil
}

func (d *fakeDispatcher) IsInFlight(ds transfer.DatasetFile) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight[ds]
}

func (d *fakeDispatcher) copied() []transfer.DatasetFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]transfer.DatasetFile, 0, len(d.copies))
	for _, c := range d.copies {
		out = append(out, c.ds)
	}
	return out
}

// fakeFiles models the working directory.
type fakeFiles struct {
	checksums map[string]transfer.Checksum
	errs      map[string]error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		checksums: make(map[string]transfer.Checksum),
		errs:      make(map[string]error),
	}
}

func (f *fakeFiles) Path(filename string) string { return "/data/" + filename }

func (f *fakeFiles) Exists(filename string) (bool, error) {
	_, ok := f.checksums[filename]
	return ok, nil
}

func (f *fakeFiles) Checksum(_ context.Context, filename string) (transfer.Checksum, error) {
	if err := f.errs[filename]; err != nil {
		return 0, err
	}
	crc, ok := f.checksums[filename]
	if !ok {
		return 0, fmt.Errorf("open %s: %w", filename, fs.ErrNotExist)
	}
	return crc, nil
}

type policyFunc func(transfer.DatasetFile) bool

func (f policyFunc) IsArchivable(ds transfer.DatasetFile) bool { return f(ds) }

func archiveAll() transfer.ArchivePolicy {
	return policyFunc(func(transfer.DatasetFile) bool { return true })
}

// noopMetrics discards everything.
type noopMetrics struct{}

func (noopMetrics) IncTransition(context.Context, transfer.DatasetStatus, transfer.DatasetStatus) {}
func (noopMetrics) IncCopiesDispatched(context.Context)                                         {}
func (noopMetrics) IncCopyFailures(context.Context)                                             {}
func (noopMetrics) IncScanFailures(context.Context)                                             {}
func (noopMetrics) ObserveScanDuration(context.Context, time.Duration)                          {}
func (noopMetrics) ObserveSnapshotSize(context.Context, int)                                    {}

var errBoom = errors.New("boom")
