package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgconv-cli/internal/config"
	"github.com/AnyUserName/imgconv-cli/internal/logging"
)

var (
	version = "0.1.0"
	verbose bool
	cfgFile string

	v      = config.NewViper()
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "imgconv",
	Short: "Batch image format converter",
	Long: `imgconv converts up to 100 images at a time into one output format
(png, jpg, jpeg, webp, gif, bmp, ico, tiff).

Each file is decoded, redrawn onto a fresh canvas (transparent, or white
for formats without alpha) and re-encoded. A broken file never stops the
rest of the batch.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&cfgFile, "config", "", "config file (default ./imgconv.yaml or $HOME/imgconv.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	cobra.CheckErr(v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level")))
	cobra.CheckErr(v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format")))

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgconv %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if err := config.ReadFile(v); err != nil {
		return err
	}
	level := v.GetString(config.KeyLogLevel)
	if verbose {
		level = slog.LevelDebug.String()
	}
	logger = logging.New(level, v.GetString(config.KeyLogFormat), os.Stderr)
	if used := v.ConfigFileUsed(); used != "" {
		logVerbose("config: %s", used)
	}
	return nil
}

// logVerbose prints a message only when debug logging is on.
func logVerbose(format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...))
}
