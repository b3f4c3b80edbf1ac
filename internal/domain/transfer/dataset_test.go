package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatasetFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		label        string
		filename     string
		wantFilename string
		wantErr      error
	}{
		{
			name:         "appends missing extension",
			label:        "GS-2024A-Q-12-3-001",
			filename:     "S20240301S0001",
			wantFilename: "S20240301S0001.fits",
		},
		{
			name:         "keeps existing extension",
			label:        "GS-2024A-Q-12-3-001",
			filename:     "S20240301S0001.fits",
			wantFilename: "S20240301S0001.fits",
		},
		{
			name:         "keeps upper case extension",
			label:        "GN-2024B-FT-2-1-004",
			filename:     "N20241001S0044.FITS",
			wantFilename: "N20241001S0044.FITS",
		},
		{
			name:     "empty label",
			label:    "  ",
			filename: "S20240301S0001",
			wantErr:  ErrEmptyDatasetLabel,
		},
		{
			name:     "empty filename",
			label:    "GS-2024A-Q-12-3-001",
			filename: "",
			wantErr:  ErrEmptyDatasetFilename,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ds, err := NewDatasetFile(tt.label, tt.filename)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, ds.Label())
			assert.Equal(t, tt.wantFilename, ds.Filename())
		})
	}
}

func TestDatasetFile_MapKey(t *testing.T) {
	t.Parallel()

	a := MustDatasetFile("GS-2024A-Q-12-3-001", "S20240301S0001")
	b := MustDatasetFile("GS-2024A-Q-12-3-001", "S20240301S0001.fits")

	assert.Equal(t, a, b)

	seen := map[DatasetFile]int{a: 1}
	seen[b]++
	assert.Len(t, seen, 1)
	assert.Equal(t, 2, seen[a])
}

func TestStateSnapshot_Merge(t *testing.T) {
	t.Parallel()

	a := MustDatasetFile("GS-1", "a")
	b := MustDatasetFile("GS-2", "b")
	c := MustDatasetFile("GS-3", "c")

	snap := StateSnapshot{DatasetStatusPending: {a}}
	snap.Merge(StateSnapshot{
		DatasetStatusPending: {b},
		DatasetStatusQueued:  {c},
	})

	assert.Equal(t, []DatasetFile{a, b}, snap[DatasetStatusPending])
	assert.Equal(t, []DatasetFile{c}, snap[DatasetStatusQueued])
	assert.Equal(t, 3, snap.Len())
}
