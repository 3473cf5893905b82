package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/AnyUserName/imgconv-cli/internal/format"
)

// errLimitReached stops the directory walk once enough images are loaded.
var errLimitReached = errors.New("input limit reached")

// Loaded is the outcome of LoadInputs.
type Loaded struct {
	Inputs []InputFile
	// Skipped counts non-image files seen before the walk ended.
	Skipped int
	// Truncated is set when an image past the limit was found and the walk
	// stopped there.
	Truncated bool
}

// LoadInputs collects image files from the given files and directories, in
// argument order and then lexical order within each directory. Hidden files
// and directories found while walking are skipped.
//
// Media types come from the extension, or from a header sniff when the
// extension is unknown, so only image files are ever read in full. Once
// limit images are loaded the walk stops; limit <= 0 means no limit.
func LoadInputs(paths []string, limit int) (Loaded, error) {
	var out Loaded

	add := func(path string) error {
		mt, err := DeclaredMediaType(path)
		if err != nil {
			return err
		}
		if !format.IsImageMediaType(mt) {
			out.Skipped++
			return nil
		}
		if limit > 0 && len(out.Inputs) >= limit {
			out.Truncated = true
			return errLimitReached
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out.Inputs = append(out.Inputs, InputFile{Name: filepath.Base(path), MediaType: mt, Data: data})
		return nil
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return Loaded{}, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if err := add(root); err != nil {
				if errors.Is(err, errLimitReached) {
					break
				}
				return Loaded{}, err
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			hidden := strings.HasPrefix(d.Name(), ".") && path != root
			if d.IsDir() {
				if hidden {
					return filepath.SkipDir
				}
				return nil
			}
			if hidden || !d.Type().IsRegular() {
				return nil
			}
			return add(path)
		})
		if errors.Is(err, errLimitReached) {
			break
		}
		if err != nil {
			return Loaded{}, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	return out, nil
}

// DeclaredMediaType mirrors how a file picker labels a file: by extension
// first, falling back to sniffing the file header when the extension is
// unknown. The file is never read past its header.
func DeclaredMediaType(path string) (string, error) {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt, nil
		}
		return t, nil
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("sniff %s: %w", path, err)
	}
	mt := m.String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt, nil
}
