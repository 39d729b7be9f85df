// Package cmd implements the command line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whit3rabbit/unspecter/internal/config"
	"github.com/whit3rabbit/unspecter/internal/log"
)

var (
	cfgFile string         // Variable to hold the config file path from the flag
	cfg     *config.Config // Global variable to hold the loaded configuration
	logger  *zap.Logger

	// Flag variables mapped to config fields for override
	silentMode     bool   // -> cfg.Silent
	debugMode      bool   // -> cfg.DebugMode
	abortOnError   bool   // -> cfg.AbortOnError
	logEnv         string // -> cfg.LogEnv
	decompilerPath string // -> cfg.Decompiler.Path
	pyVersion      string // -> cfg.Decompiler.Version
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unspecter",
	Short: "Recover Python source protected by the Specter obfuscator.",
	Long: `unspecter extracts the marshalled bytecode Specter hides in dunder
assignments, decompiles it with pycdc, and decodes the scrambled state table
back into the original program.

The recovered file starts with a warning banner. Review it before running it.`,
	// Load configuration and logging once, before any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			cfg = loadedCfg

			// Command-line flags win over the config file and environment
			applyFlagOverrides(cfg, cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if logger == nil {
			logger = log.Initialize(log.Options{
				Env:    cfg.LogEnv,
				Silent: cfg.Silent,
				Debug:  cfg.DebugMode,
			})
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// applyFlagOverrides applies command-line flag values to the config struct.
// Only overrides if the flag was explicitly set by the user via cmd.Flags().Changed().
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("debug") {
		cfg.DebugMode = debugMode
	}
	if cmd.Flags().Changed("abort-on-error") {
		cfg.AbortOnError = abortOnError
	}
	if cmd.Flags().Changed("log-env") {
		cfg.LogEnv = logEnv
	}
	if cmd.Flags().Changed("decompiler") {
		cfg.Decompiler.Path = decompilerPath
	}
	if cmd.Flags().Changed("py-version") {
		cfg.Decompiler.Version = pyVersion
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Only log warnings and errors (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&abortOnError, "abort-on-error", true, "Stop directory runs on the first failure (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logEnv, "log-env", config.LogEnvDev, "Log encoding: dev or prod (overrides config)")
	rootCmd.PersistentFlags().StringVar(&decompilerPath, "decompiler", "", "Path to the pycdc executable (overrides config)")
	rootCmd.PersistentFlags().StringVar(&pyVersion, "py-version", "", "Bytecode version hint passed to pycdc (overrides config)")

	rootCmd.AddCommand(deobfuscateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configCmd)
}
