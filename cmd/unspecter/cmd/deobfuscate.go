package cmd

import (
	"github.com/spf13/cobra"

	"github.com/whit3rabbit/unspecter/internal/deobfuscator"
)

// deobfuscateCmd represents the base command for recovery actions
var deobfuscateCmd = &cobra.Command{
	Use:     "deobfuscate",
	Aliases: []string{"deob"},
	Short:   "Recovers Specter-obfuscated Python code",
	Long: `Provides subcommands to recover individual files or entire directories.

Example:
  unspecter deobfuscate file obfuscated.py -o deobfuscated.py
  unspecter deobfuscate dir ./protected -o ./recovered`,
}

// newDeobfuscator builds the pipeline from the loaded configuration and
// checks that pycdc is available.
func newDeobfuscator() (*deobfuscator.Deobfuscator, error) {
	d := deobfuscator.New(cfg)
	if err := d.CheckDependencies(); err != nil {
		return nil, err
	}
	return d, nil
}
