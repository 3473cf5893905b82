package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgconv-cli/internal/encoder"
	"github.com/AnyUserName/imgconv-cli/internal/format"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported output formats",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		printFormats(encoder.NewRegistry())
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func printFormats(reg *encoder.Registry) {
	ready := map[format.Format]bool{}
	for _, f := range reg.Available() {
		ready[f] = true
	}

	fmt.Println()
	fmt.Printf("  %-6s %-14s %-18s %-8s %s\n", "FORMAT", "MEDIA TYPE", "ALPHA", "QUALITY", "ENCODER")
	for _, s := range format.Specs() {
		quality := "-"
		if s.Lossy {
			quality = fmt.Sprintf("%d", s.Format.QualityPercent())
		}
		status := "ready"
		if !ready[s.Format] {
			status = "missing"
			if s.Format == format.WEBP {
				status = "missing (install cwebp)"
			}
		}
		fmt.Printf("  %-6s %-14s %-18s %-8s %s\n", s.Format, s.MediaType, s.Alpha, quality, status)
	}
	fmt.Println()
}
