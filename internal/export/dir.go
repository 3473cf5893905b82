package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirSink writes blobs as files under Dir. Writes go to a temp file that is
// renamed into place, so a failed save never leaves a partial file.
type DirSink struct {
	Dir string
	// Overwrite allows replacing existing files.
	Overwrite bool
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string, overwrite bool) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{Dir: dir, Overwrite: overwrite}, nil
}

func (s *DirSink) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." || strings.TrimSpace(clean) == "" {
		return fmt.Errorf("invalid file name %q", name)
	}
	dst := filepath.Join(s.Dir, clean)

	if !s.Overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("%s already exists", dst)
		}
	}

	tmp, err := os.CreateTemp(s.Dir, ".imgconv-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", clean, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}

// Path returns where name is (or would be) written.
func (s *DirSink) Path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(filepath.Clean("/"+name)))
}
