package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PickupDir is the drop directory the e-transfer system polls. Files appear in
// it atomically: they are written under a temporary name and renamed into place.
type PickupDir struct {
	root string
}

// NewPickupDir creates a PickupDir rooted at root.
func NewPickupDir(root string) *PickupDir { return &PickupDir{root: root} }

// Copy stages src into the pickup directory as name.
func (p *PickupDir) Copy(ctx context.Context, src, name string) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("creating pickup dir: %w", err)
	}

	dst := filepath.Join(p.root, filepath.Base(name))
	// Leading dot keeps the e-transfer poller from picking up partial files.
	tmp := filepath.Join(p.root, "."+filepath.Base(name)+".tmp")

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	_, copyErr := io.Copy(out, &contextReader{ctx: ctx, r: in})
	syncErr := out.Sync()
	closeErr := out.Close()

	for _, err := range []error{copyErr, syncErr, closeErr} {
		if err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp->final: %w", err)
	}
	return nil
}
