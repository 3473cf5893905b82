package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgconv-cli/internal/format"
	"github.com/AnyUserName/imgconv-cli/internal/hasher"
	"github.com/AnyUserName/imgconv-cli/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <out_dir_or_manifest>",
	Short: "Validate a run manifest and check the converted files on disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	manifestPath, err := resolveManifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := manifest.ReadJSON(manifestPath)
	if err != nil {
		return err
	}

	baseDir := filepath.Join(filepath.Dir(manifestPath), m.BasePath)
	errs := validateManifest(m, baseDir)

	if len(errs) == 0 {
		fmt.Println("  ✓ Manifest is valid")
		fmt.Printf("  ✓ %d converted, %d failed: all outputs present\n", m.Stats.Succeeded, m.Stats.Failed)
		return nil
	}

	fmt.Printf("  ✗ Manifest has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

func validateManifest(m *manifest.Manifest, baseDir string) []string {
	var errs []string

	if m.Version != manifest.SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}
	target, err := format.Parse(m.Format)
	if err != nil {
		errs = append(errs, fmt.Sprintf("format: %v", err))
	}

	seen := map[string]bool{}
	succeeded, failed := 0, 0
	for i, e := range m.Entries {
		switch e.Status {
		case manifest.StatusFailed:
			failed++
			if e.ErrorKind == "" {
				errs = append(errs, fmt.Sprintf("entry[%d] %q: failed without error_kind", i, e.Source))
			}
			continue
		case manifest.StatusOK:
			succeeded++
		default:
			errs = append(errs, fmt.Sprintf("entry[%d] %q: unknown status %q", i, e.Source, e.Status))
			continue
		}

		if e.Output == "" {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: missing output", i, e.Source))
			continue
		}
		if target != "" && e.Output != format.OutputName(e.Source, target) {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: output %q does not match target format", i, e.Source, e.Output))
		}
		if e.Width <= 0 || e.Height <= 0 {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: invalid dimensions %dx%d", i, e.Source, e.Width, e.Height))
		}
		if seen[e.Output] {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: duplicate output %q", i, e.Source, e.Output))
		}
		seen[e.Output] = true

		errs = append(errs, checkOutputFile(i, e, filepath.Join(baseDir, e.Output))...)
	}

	if m.Stats.Succeeded != succeeded {
		errs = append(errs, fmt.Sprintf("stats.succeeded mismatch: %d != %d", m.Stats.Succeeded, succeeded))
	}
	if m.Stats.Failed != failed {
		errs = append(errs, fmt.Sprintf("stats.failed mismatch: %d != %d", m.Stats.Failed, failed))
	}
	return errs
}

func checkOutputFile(i int, e manifest.Entry, path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return []string{fmt.Sprintf("entry[%d] %q: file not found: %s", i, e.Source, e.Output)}
	}
	defer f.Close()

	var errs []string
	if info, err := f.Stat(); err == nil && e.Size > 0 && info.Size() != e.Size {
		errs = append(errs, fmt.Sprintf("entry[%d] %q: size mismatch: manifest=%d, disk=%d",
			i, e.Source, e.Size, info.Size()))
	}
	if e.Hash != "" {
		sum, err := hasher.ContentHashReader(f, len(e.Hash))
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: read: %v", i, e.Source, err))
		} else if sum != e.Hash {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: hash mismatch: manifest=%s, disk=%s",
				i, e.Source, e.Hash, sum))
		}
	}
	return errs
}
