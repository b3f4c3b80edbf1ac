package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status FileStatus
		known  bool
		want   DatasetStatus
		wantOK bool
	}{
		{name: "no status", known: false, want: DatasetStatusTransferError, wantOK: true},
		{name: "unknown", status: FileStatusUnknown("timeout"), known: true, want: DatasetStatusTransferError, wantOK: true},
		{name: "not found", status: FileStatusNotFound(), known: true, want: DatasetStatusPending, wantOK: true},
		{name: "queued", status: FileStatusQueued(), known: true, want: DatasetStatusQueued, wantOK: true},
		{name: "processing", status: FileStatusProcessing(), known: true, want: DatasetStatusTransferring, wantOK: true},
		{name: "rejected", status: FileStatusRejected("bad"), known: true, want: DatasetStatusRejected, wantOK: true},
		{name: "accepted needs checksum", status: FileStatusAccepted(7), known: true, wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok, err := UpdateTransition(tt.status, tt.known)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateTransition_UnspecifiedKind(t *testing.T) {
	t.Parallel()

	_, _, err := UpdateTransition(FileStatus{}, true)
	assert.ErrorIs(t, err, ErrUnexpectedFileStatus)
}

func TestAcceptedTransition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DatasetStatusAccepted, AcceptedTransition(ChecksumMatch))
	assert.Equal(t, DatasetStatusPending, AcceptedTransition(ChecksumMismatch))
	assert.Equal(t, DatasetStatusAccepted, AcceptedTransition(ChecksumLocalMissing))
	assert.Equal(t, DatasetStatusTransferError, AcceptedTransition(ChecksumLocalError))
}
