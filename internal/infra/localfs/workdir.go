// Package localfs reads archive candidates from the local working directory
// and stages them into the e-transfer pickup area.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

var _ transfer.LocalFiles = (*WorkingDir)(nil)

// WorkingDir is the directory in which datasets are written by the data
// acquisition system.
type WorkingDir struct {
	root string
}

// NewWorkingDir creates a WorkingDir rooted at root.
func NewWorkingDir(root string) *WorkingDir { return &WorkingDir{root: root} }

// Path returns the absolute location of filename.
func (w *WorkingDir) Path(filename string) string {
	return filepath.Join(w.root, filepath.Base(filename))
}

// Exists reports whether filename is a regular file in the working directory.
func (w *WorkingDir) Exists(filename string) (bool, error) {
	info, err := os.Stat(w.Path(filename))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", filename, err)
	}
	return info.Mode().IsRegular(), nil
}

// Checksum computes the CRC-32 of filename, stopping early when ctx is done.
func (w *WorkingDir) Checksum(ctx context.Context, filename string) (transfer.Checksum, error) {
	f, err := os.Open(w.Path(filename))
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", filename, err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, &contextReader{ctx: ctx, r: f}); err != nil {
		return 0, fmt.Errorf("checksumming %s: %w", filename, err)
	}
	return transfer.Checksum(crc.Sum32()), nil
}

// contextReader fails reads once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
