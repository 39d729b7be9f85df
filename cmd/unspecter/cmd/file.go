package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

const defaultInputFile = "obfuscated.py"

var (
	outputFile string // Flag variable for output file path
	toStdout   bool
)

// fileCmd represents the deobfuscate file command
var fileCmd = &cobra.Command{
	Use:   "file [python_file_path]",
	Short: "Recover a single obfuscated Python file",
	Long: `Reads a single Specter-obfuscated Python file (default: obfuscated.py),
recovers the original program, and writes it behind a warning banner to the
output file (default: output.file from the config, deobfuscated.py).
Existing output is overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		filePath := defaultInputFile
		if len(args) == 1 {
			filePath = args[0]
		}
		targetFile := outputFile
		if targetFile == "" {
			targetFile = cfg.Output.File
		}

		d, err := newDeobfuscator()
		if err != nil {
			return err
		}

		if toStdout {
			res, err := d.ProcessFile(cmd.Context(), filePath)
			if err != nil {
				return fmt.Errorf("error processing file %s: %w", filePath, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Source)
			return nil
		}

		if _, err := d.ProcessFileToFile(cmd.Context(), filePath, targetFile); err != nil {
			return fmt.Errorf("error processing file %s: %w", filePath, err)
		}
		slog.InfoContext(cmd.Context(), "deobfuscation complete", "output", targetFile)
		return nil
	},
}

func init() {
	deobfuscateCmd.AddCommand(fileCmd)
	fileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: output.file from config)")
	fileCmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the recovered source instead of writing a file")
}
