package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

const rules = `
exclude:
  - name: engineering
    label_pattern: "^GS-ENG-"
  - name: calibration
    label_pattern: "-CAL-[0-9]+$"
`

func TestParse(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(rules))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())

	tests := []struct {
		label    string
		archive  bool
		ruleName string
	}{
		{label: "GS-2024A-Q-1-1-001", archive: true},
		{label: "GS-ENG-20240101-1", archive: false, ruleName: "engineering"},
		{label: "GN-2024A-CAL-12", archive: false, ruleName: "calibration"},
		{label: "GN-2024A-CAL-12x", archive: true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			ds := transfer.MustDatasetFile(tt.label, "S20240101S0001")
			assert.Equal(t, tt.archive, p.IsArchivable(ds))
			name, _ := p.MatchingRule(ds)
			assert.Equal(t, tt.ruleName, name)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("exclude:\n  - name: bad\n    label_pattern: \"(\"\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("exclude:\n  - name: empty\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("exclude: ["))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	p, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, p.Len())

	p, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, p.IsArchivable(transfer.MustDatasetFile("GS-ENG-1", "a")))

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o644))
	p, err = Load(path)
	require.NoError(t, err)
	assert.False(t, p.IsArchivable(transfer.MustDatasetFile("GS-ENG-1", "a")))
}
