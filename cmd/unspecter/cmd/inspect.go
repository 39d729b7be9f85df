package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [python_file_path]",
	Short: "Report what the recovery pipeline finds in a file",
	Long: `Runs the full recovery pipeline on one file without writing any output,
and prints the number of payload symbols, the decompiled listing size, the
decode key and the state table dimensions. Useful to check whether a file is a
supported Specter variant.`,
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
		d, err := newDeobfuscator()
		if err != nil {
			return err
		}

		res, runErr := d.ProcessFile(cmd.Context(), filePath)
		if res == nil {
			return runErr
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:            %s\n", filePath)
		fmt.Fprintf(out, "state:           %s\n", res.State)
		fmt.Fprintf(out, "unparsed stmts:  %d\n", res.SkippedStatements)
		fmt.Fprintf(out, "payload symbols: %d (%d bytes)\n", res.Symbols, res.BlobSize)
		fmt.Fprintf(out, "listing lines:   %d\n", res.ListingLines)
		fmt.Fprintf(out, "decode key:      %d\n", res.Key)
		fmt.Fprintf(out, "state table:     %d entries, %d skipped\n", res.TableEntries, res.SkippedEntries)
		fmt.Fprintf(out, "order length:    %d\n", res.OrderLength)
		return runErr
	},
}
