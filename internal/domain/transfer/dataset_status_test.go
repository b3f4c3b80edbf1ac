package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatasetStatus(t *testing.T) {
	t.Parallel()

	all := []DatasetStatus{
		DatasetStatusPending,
		DatasetStatusCopyFailed,
		DatasetStatusQueued,
		DatasetStatusTransferring,
		DatasetStatusTransferError,
		DatasetStatusRejected,
		DatasetStatusAccepted,
		DatasetStatusNone,
	}
	for _, s := range all {
		got, err := ParseDatasetStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseDatasetStatus("ARCHIVED")
	assert.ErrorIs(t, err, ErrDatasetStatusUnknown)
}

func TestInterestingStatuses(t *testing.T) {
	t.Parallel()

	assert.ElementsMatch(t, []DatasetStatus{
		DatasetStatusPending,
		DatasetStatusCopyFailed,
		DatasetStatusQueued,
		DatasetStatusTransferring,
		DatasetStatusTransferError,
	}, InterestingStatuses())
}

func TestChecksum_RoundTrip(t *testing.T) {
	t.Parallel()

	c, err := ParseChecksum("0xDEADBEEF")
	require.NoError(t, err)
	assert.Equal(t, Checksum(0xdeadbeef), c)
	assert.Equal(t, "deadbeef", c.String())
	assert.Equal(t, "0000002a", Checksum(42).String())

	_, err = ParseChecksum("not-hex")
	assert.Error(t, err)
}
