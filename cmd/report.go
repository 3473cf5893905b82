package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgconv-cli/internal/manifest"
)

var reportCmd = &cobra.Command{
	Use:   "report <out_dir_or_manifest>",
	Short: "Summarise a conversion run from its manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(_ *cobra.Command, args []string) error {
	path, err := resolveManifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := manifest.ReadJSON(path)
	if err != nil {
		return err
	}
	printReport(m)
	return nil
}

// resolveManifestPath accepts either a manifest file or the output directory holding it.
func resolveManifestPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return filepath.Join(path, manifest.FileName), nil
	}
	return path, nil
}

func printReport(m *manifest.Manifest) {
	fmt.Println()
	fmt.Printf("  Manifest version: %d\n", m.Version)
	fmt.Printf("  Generated:        %s\n", m.GeneratedAt)
	fmt.Printf("  Run:              %s\n", m.RunID)
	fmt.Printf("  Target format:    %s\n", m.Format)
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Files:            %d\n", len(m.Entries))
	fmt.Printf("  Converted:        %d\n", s.Succeeded)
	fmt.Printf("  Failed:           %d\n", s.Failed)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Printf("  Size ratio:       %.1f%% of original\n", ratio)
	}
	fmt.Println()

	// Failures by kind.
	kinds := map[string]int{}
	for _, e := range m.Entries {
		if e.Status == manifest.StatusFailed {
			kinds[e.ErrorKind]++
		}
	}
	if len(kinds) > 0 {
		var names []string
		for k := range kinds {
			names = append(names, k)
		}
		sort.Strings(names)
		fmt.Println("  Failures:")
		for _, k := range names {
			fmt.Printf("    %-14s %4d files\n", k, kinds[k])
		}
		for _, e := range m.Entries {
			if e.Status == manifest.StatusFailed {
				fmt.Printf("    ✗ %s: %s\n", e.Source, e.Error)
			}
		}
		fmt.Println()
	}

	// Largest outputs.
	var ok []manifest.Entry
	for _, e := range m.Entries {
		if e.Status == manifest.StatusOK {
			ok = append(ok, e)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Size > ok[j].Size })
	n := min(len(ok), 10)
	if n > 0 {
		fmt.Printf("  Top %d largest outputs (source → output):\n", n)
		for _, e := range ok[:n] {
			fmt.Printf("    %-40s %8s → %8s  %dx%d\n",
				truncKey(e.Output, 40), formatBytes(e.SourceSize), formatBytes(e.Size), e.Width, e.Height)
		}
		fmt.Println()
	}
}
