package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var outputDir string // Flag variable for output directory

// dirCmd represents the deobfuscate dir command
var dirCmd = &cobra.Command{
	Use:   "dir <source_directory>",
	Short: "Recover obfuscated Python files in a directory recursively",
	Long: `Recursively scans the source directory for Python files (based on configured
extensions), recovers each Specter-obfuscated one, and writes the results to the
output directory with the configured suffix, preserving the original structure.
Files without an embedded payload are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if outputDir == "" {
			return fmt.Errorf("output directory (-o, --output) is required for directory mode")
		}
		sourceDir := args[0]
		info, err := os.Stat(sourceDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("source directory '%s' not found", sourceDir)
			}
			return fmt.Errorf("error checking source directory '%s': %w", sourceDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source path '%s' is not a directory", sourceDir)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		d, err := newDeobfuscator()
		if err != nil {
			return err
		}

		summary, err := d.ProcessDir(cmd.Context(), args[0], outputDir)
		if summary != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "processed: %d, skipped: %d, failed: %d\n",
				len(summary.Processed), len(summary.Skipped), len(summary.Failed))
		}
		return err
	},
}

func init() {
	deobfuscateCmd.AddCommand(dirCmd)
	dirCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory path (required)")
}
