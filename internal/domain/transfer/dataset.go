// Package transfer models the lifecycle of observatory datasets on their way
// into the Gemini Science Archive: local transfer states, remote file statuses,
// and the ports the reconciliation loop drives.
package transfer

import (
	"errors"
	"strings"
)

// FitsExtension is the canonical extension carried by every archived filename.
const FitsExtension = ".fits"

var (
	ErrEmptyDatasetLabel    = errors.New("dataset label cannot be empty")
	ErrEmptyDatasetFilename = errors.New("dataset filename cannot be empty")
)

// DatasetFile identifies one archive candidate: the dataset label assigned by
// the observation's execution log paired with the file the dataset was written to.
// It is a comparable value and is used directly as a map key.
type DatasetFile struct {
	label    string
	filename string
}

// NewDatasetFile creates a DatasetFile, normalizing the filename so it always
// carries the .fits extension.
func NewDatasetFile(label, filename string) (DatasetFile, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return DatasetFile{}, ErrEmptyDatasetLabel
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return DatasetFile{}, ErrEmptyDatasetFilename
	}

	return DatasetFile{label: label, filename: NormalizeFilename(filename)}, nil
}

// MustDatasetFile is like NewDatasetFile but panics on invalid input.
// Intended for tests and static fixtures.
func MustDatasetFile(label, filename string) DatasetFile {
	ds, err := NewDatasetFile(label, filename)
	if err != nil {
		panic(err)
	}
	return ds
}

// NormalizeFilename appends the .fits extension when it is missing.
func NormalizeFilename(filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), FitsExtension) {
		return filename
	}
	return filename + FitsExtension
}

// Label returns the dataset label.
func (d DatasetFile) Label() string { return d.label }

// Filename returns the normalized filename.
func (d DatasetFile) Filename() string { return d.filename }

// IsZero reports whether d was never initialized.
func (d DatasetFile) IsZero() bool { return d.label == "" && d.filename == "" }

func (d DatasetFile) String() string { return d.label + "/" + d.filename }
