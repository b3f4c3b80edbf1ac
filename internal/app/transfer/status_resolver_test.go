package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

func newTestResolver(tq *mockTransferQuerier, cq *mockChecksumQuerier) *StatusResolver {
	return NewStatusResolver(tq, cq, time.Minute, logger.Noop(), noop.NewTracerProvider().Tracer("test"))
}

func TestStatusResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(tq *mockTransferQuerier, cq *mockChecksumQuerier)
		want    transfer.FileStatus
		wantErr error
	}{
		{
			name: "e-transfer entry wins",
			setup: func(tq *mockTransferQuerier, cq *mockChecksumQuerier) {
				tq.On("TransferStatus", mock.Anything, "a.fits").Return(transfer.FileStatusProcessing(), true, nil)
			},
			want: transfer.FileStatusProcessing(),
		},
		{
			name: "no entry and archived is accepted",
			setup: func(tq *mockTransferQuerier, cq *mockChecksumQuerier) {
				tq.On("TransferStatus", mock.Anything, "a.fits").Return(transfer.FileStatus{}, false, nil)
				cq.On("Checksum", mock.Anything, "a.fits").Return(transfer.Checksum(99), true, nil)
			},
			want: transfer.FileStatusAccepted(99),
		},
		{
			name: "no entry and not archived is not found",
			setup: func(tq *mockTransferQuerier, cq *mockChecksumQuerier) {
				tq.On("TransferStatus", mock.Anything, "a.fits").Return(transfer.FileStatus{}, false, nil)
				cq.On("Checksum", mock.Anything, "a.fits").Return(transfer.Checksum(0), false, nil)
			},
			want: transfer.FileStatusNotFound(),
		},
		{
			name: "e-transfer failure degrades to unknown",
			setup: func(tq *mockTransferQuerier, cq *mockChecksumQuerier) {
				tq.On("TransferStatus", mock.Anything, "a.fits").Return(transfer.FileStatus{}, false, errBoom)
			},
			want: transfer.FileStatusUnknown("boom"),
		},
		{
			name: "checksum failure degrades to unknown",
			setup: func(tq *mockTransferQuerier, cq *mockChecksumQuerier) {
				tq.On("TransferStatus", mock.Anything, "a.fits").Return(transfer.FileStatus{}, false, nil)
				cq.On("Checksum", mock.Anything, "a.fits").Return(transfer.Checksum(0), false, errBoom)
			},
			want: transfer.FileStatusUnknown("boom"),
		},
		{
			name: "unrecognized remote code propagates",
			setup: func(tq *mockTransferQuerier, cq *mockChecksumQuerier) {
				err := fmt.Errorf("query: %w", transfer.ErrUnrecognizedRemoteCode)
				tq.On("TransferStatus", mock.Anything, "a.fits").Return(transfer.FileStatus{}, false, err)
			},
			wantErr: transfer.ErrUnrecognizedRemoteCode,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tq, cq := new(mockTransferQuerier), new(mockChecksumQuerier)
			tt.setup(tq, cq)
			resolver := newTestResolver(tq, cq)

			got, err := resolver.Resolve(context.Background(), "a.fits")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			tq.AssertExpectations(t)
			cq.AssertExpectations(t)
		})
	}
}

func TestStatusResolver_ResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	tq, cq := new(mockTransferQuerier), new(mockChecksumQuerier)
	tq.On("TransferStatus", mock.Anything, "a.fits").Return(transfer.FileStatus{}, false, nil)
	cq.On("Checksum", mock.Anything, "a.fits").Return(transfer.Checksum(7), true, nil)
	resolver := newTestResolver(tq, cq)

	first, err := resolver.Resolve(context.Background(), "a.fits")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "a.fits")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStatusResolver_ResolveAll(t *testing.T) {
	t.Parallel()

	tq, cq := new(mockTransferQuerier), new(mockChecksumQuerier)
	input := []string{"queued.fits", "new.fits", "archived.fits", "failed.fits", "slow.fits", "queued.fits"}

	tq.On("TransferStatuses", mock.Anything, []string{"queued.fits", "new.fits", "archived.fits", "failed.fits", "slow.fits"}).
		Return(map[string]transfer.StatusLookup{
			"queued.fits":   {Status: transfer.FileStatusQueued(), Found: true},
			"new.fits":      {Found: false},
			"archived.fits": {Found: false},
			"slow.fits":     {Found: false},
		}, nil).Once()
	cq.On("Checksums", mock.Anything, []string{"new.fits", "archived.fits", "slow.fits"}, time.Minute).
		Return(map[string]transfer.ChecksumLookup{
			"new.fits":      {Found: false},
			"archived.fits": {Checksum: 42, Found: true},
		}).Once()

	resolver := newTestResolver(tq, cq)

	got, err := resolver.ResolveAll(context.Background(), input)
	require.NoError(t, err)

	assert.Len(t, got, 5)
	assert.Equal(t, transfer.FileStatusQueued(), got["queued.fits"])
	assert.Equal(t, transfer.FileStatusNotFound(), got["new.fits"])
	assert.Equal(t, transfer.FileStatusAccepted(42), got["archived.fits"])
	assert.Equal(t, transfer.FileStatusKindUnknown, got["failed.fits"].Kind())
	assert.Equal(t, transfer.FileStatusKindUnknown, got["slow.fits"].Kind())
	tq.AssertExpectations(t)
	cq.AssertExpectations(t)
}

func TestStatusResolver_ResolveAllSkipsChecksumsWhenAllResolved(t *testing.T) {
	t.Parallel()

	tq, cq := new(mockTransferQuerier), new(mockChecksumQuerier)
	tq.On("TransferStatuses", mock.Anything, []string{"a.fits"}).
		Return(map[string]transfer.StatusLookup{"a.fits": {Status: transfer.FileStatusProcessing(), Found: true}}, nil)

	resolver := newTestResolver(tq, cq)

	got, err := resolver.ResolveAll(context.Background(), []string{"a.fits"})
	require.NoError(t, err)
	assert.Equal(t, map[string]transfer.FileStatus{"a.fits": transfer.FileStatusProcessing()}, got)
	cq.AssertNotCalled(t, "Checksums", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatusResolver_ResolveAllBatchFailure(t *testing.T) {
	t.Parallel()

	tq, cq := new(mockTransferQuerier), new(mockChecksumQuerier)
	tq.On("TransferStatuses", mock.Anything, mock.Anything).Return(nil, errBoom)

	resolver := newTestResolver(tq, cq)

	input := []string{"a.fits", "b.fits", "c.fits"}
	got, err := resolver.ResolveAll(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, got, len(input))
	for _, name := range input {
		assert.Equal(t, transfer.FileStatusKindUnknown, got[name].Kind(), name)
	}
	cq.AssertNotCalled(t, "Checksums", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatusResolver_ResolveAllUnrecognizedCode(t *testing.T) {
	t.Parallel()

	tq, cq := new(mockTransferQuerier), new(mockChecksumQuerier)
	tq.On("TransferStatuses", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("batch: %w", transfer.ErrUnrecognizedRemoteCode))

	resolver := newTestResolver(tq, cq)

	_, err := resolver.ResolveAll(context.Background(), []string{"a.fits"})
	assert.ErrorIs(t, err, transfer.ErrUnrecognizedRemoteCode)
}

func TestStatusResolver_ResolveAllEmpty(t *testing.T) {
	t.Parallel()

	tq, cq := new(mockTransferQuerier), new(mockChecksumQuerier)
	resolver := newTestResolver(tq, cq)

	got, err := resolver.ResolveAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	tq.AssertNotCalled(t, "TransferStatuses", mock.Anything, mock.Anything)
}
