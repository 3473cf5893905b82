package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgconv-cli/internal/config"
	"github.com/AnyUserName/imgconv-cli/internal/converter"
	"github.com/AnyUserName/imgconv-cli/internal/encoder"
	"github.com/AnyUserName/imgconv-cli/internal/export"
	"github.com/AnyUserName/imgconv-cli/internal/manifest"
	"github.com/AnyUserName/imgconv-cli/internal/metrics"
	"github.com/AnyUserName/imgconv-cli/internal/pipeline"
)

var (
	convertOnly        []string
	convertManifest    bool
	convertMetricsFile string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file_or_dir>...",
	Short: "Convert images to one output format",
	Long: `Collects image files from the given paths (directories are walked),
keeps at most --max-files of them in order, converts each to --to and
writes the results to --out.

Output names keep the source name with the extension replaced:
holiday.png -> holiday.webp. Non-image files and files past the limit
are skipped silently.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	flags := convertCmd.Flags()
	flags.StringP("to", "t", "png", "output format (png, jpg, jpeg, webp, gif, bmp, ico, tiff)")
	flags.StringP("out", "o", "./imgconv_out", "output directory")
	flags.IntP("workers", "w", 1, "parallel conversions (result order is unaffected)")
	flags.Int("max-files", pipeline.DefaultMaxFiles, "maximum number of input files")
	flags.Int64("max-pixels", converter.DefaultMaxPixels, "reject sources whose declared size exceeds this many pixels")
	flags.Duration("pace", 0, "delay between saved files")
	flags.Bool("overwrite", false, "replace existing files in the output directory")
	flags.StringSliceVar(&convertOnly, "only", nil, "export only these sources (by source or output name)")
	flags.BoolVar(&convertManifest, "manifest", true, "write "+manifest.FileName+" to the output directory")
	flags.StringVar(&convertMetricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")

	for key, name := range map[string]string{
		config.KeyFormat:    "to",
		config.KeyOutDir:    "out",
		config.KeyWorkers:   "workers",
		config.KeyMaxFiles:  "max-files",
		config.KeyMaxPixels: "max-pixels",
		config.KeyPace:      "pace",
		config.KeyOverwrite: "overwrite",
	} {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(name)))
	}
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	absOutput, err := filepath.Abs(cfg.OutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	logVerbose("output:  %s", absOutput)
	logVerbose("format:  %s (alpha=%s, quality=%d)", cfg.Format, cfg.Format.AlphaPolicy(), cfg.Format.QualityPercent())

	loaded, err := pipeline.LoadInputs(args, cfg.MaxFiles)
	if err != nil {
		return fmt.Errorf("load inputs: %w", err)
	}

	registry := encoder.NewRegistry()
	logVerbose("%s", registry.String())

	codec := converter.NewImageCodec(registry)
	codec.MaxPixels = cfg.MaxPixels

	reg := prometheus.NewRegistry()
	p := pipeline.New(pipeline.Config{
		MaxFiles: cfg.MaxFiles,
		Workers:  cfg.Workers,
		Logger:   logger,
		Metrics:  metrics.MustNew(reg),
	}, converter.New(codec))

	accepted := p.Submit(loaded.Inputs...)
	if accepted == 0 {
		return fmt.Errorf("no image files found in %s", strings.Join(args, ", "))
	}
	if loaded.Skipped > 0 {
		logVerbose("skipped %d non-image files", loaded.Skipped)
	}
	if loaded.Truncated {
		logVerbose("stopped at the %d file limit", p.MaxFiles())
	}

	results, err := p.Run(ctx, cfg.Format)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	selected, err := selectResults(results, convertOnly)
	if err != nil {
		return err
	}

	for name, sources := range duplicateOutputs(selected) {
		logger.Warn("output name collision", "output", name, "sources", sources)
		fmt.Fprintf(os.Stderr, "warning: %s would be written by %s; only one will be saved\n",
			name, strings.Join(sources, ", "))
	}

	sink, err := export.NewDirSink(absOutput, cfg.Overwrite)
	if err != nil {
		return err
	}
	exp := export.New(sink, export.Options{Pace: cfg.Pace, Logger: logger})
	saved, exportErr := exp.ExportAll(ctx, selected)

	if convertManifest {
		m := manifest.FromResults(p.RunID(), string(cfg.Format), selected)
		if err := manifest.WriteJSON(m, filepath.Join(absOutput, manifest.FileName)); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
	}
	if convertMetricsFile != "" {
		if err := prometheus.WriteToTextfile(convertMetricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	printConvertReport(selected, saved, absOutput, time.Since(start))

	if exportErr != nil {
		return fmt.Errorf("export: %w", exportErr)
	}
	failed := countFailed(selected)
	if failed > 0 && failed == len(selected) {
		return fmt.Errorf("all %d files failed to convert", failed)
	}
	return nil
}

// selectResults keeps the results named by only (source or output name),
// in result order. An empty filter keeps everything.
func selectResults(results []pipeline.Result, only []string) ([]pipeline.Result, error) {
	if len(only) == 0 {
		return results, nil
	}
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}
	var out []pipeline.Result
	matched := map[string]bool{}
	for _, r := range results {
		for _, key := range []string{r.SourceName, r.OutputName} {
			if key != "" && want[key] {
				out = append(out, r)
				matched[key] = true
				break
			}
		}
	}
	var missing []string
	for _, name := range only {
		if !matched[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.New("no result for --only " + strings.Join(missing, ", "))
	}
	return out, nil
}

// duplicateOutputs maps each output name produced by more than one
// successful result to its source names.
func duplicateOutputs(results []pipeline.Result) map[string][]string {
	bySource := map[string][]string{}
	for _, r := range results {
		if r.OK() {
			bySource[r.OutputName] = append(bySource[r.OutputName], r.SourceName)
		}
	}
	for name, sources := range bySource {
		if len(sources) < 2 {
			delete(bySource, name)
		}
	}
	return bySource
}

func countFailed(results []pipeline.Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

func printConvertReport(results []pipeline.Result, saved int, outDir string, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║             imgconv convert complete             ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	var inBytes, outBytes int64
	for _, r := range results {
		inBytes += r.SourceSize
		outBytes += int64(len(r.Data))
	}

	fmt.Printf("  Files:       %d\n", len(results))
	fmt.Printf("  Converted:   %d\n", len(results)-countFailed(results))
	fmt.Printf("  Failed:      %d\n", countFailed(results))
	fmt.Printf("  Saved:       %d → %s\n", saved, outDir)
	fmt.Printf("  Input size:  %s\n", formatBytes(inBytes))
	fmt.Printf("  Output size: %s\n", formatBytes(outBytes))
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()

	for _, r := range results {
		if r.OK() {
			fmt.Printf("    ✓ %-40s → %-40s %8s\n",
				truncKey(r.SourceName, 40), truncKey(r.OutputName, 40), formatBytes(int64(len(r.Data))))
			continue
		}
		fmt.Printf("    ✗ %-40s   %s\n", truncKey(r.SourceName, 40), r.Kind())
	}
	fmt.Println()
}

// formatBytes renders a byte count the way file pickers do.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d Bytes", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
