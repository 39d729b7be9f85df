// Package api provides the public API for using the deobfuscator as a library.
//
// It recovers the original source of Python programs protected by the Specter
// obfuscator, using the same pipeline as the command-line interface. An
// external pycdc binary is required.
//
// Basic usage example:
//
//	deob, err := api.NewDeobfuscator(api.Options{DecompilerPath: "/opt/pycdc"})
//	if err != nil {
//	    log.Fatalf("Failed to create deobfuscator: %v", err)
//	}
//
//	source, err := deob.DeobfuscateFile(ctx, "obfuscated.py")
//	if err != nil {
//	    log.Fatalf("Failed to deobfuscate file: %v", err)
//	}
//
//	fmt.Println(source) // Prints the recovered program behind a warning banner
package api

import (
	"context"
	"fmt"

	"github.com/whit3rabbit/unspecter/internal/config"
	"github.com/whit3rabbit/unspecter/internal/decompiler"
	"github.com/whit3rabbit/unspecter/internal/deobfuscator"
	"github.com/whit3rabbit/unspecter/internal/extractor"
	"github.com/whit3rabbit/unspecter/internal/listing"
)

// Banner is the warning prepended to every recovered source.
const Banner = deobfuscator.Banner

// Errors callers can test for with errors.Is.
var (
	// ErrSchemeMismatch means the input carries no Specter payload.
	ErrSchemeMismatch = extractor.ErrSchemeMismatch
	// ErrMissingDependency means the decompiler executable was not found.
	ErrMissingDependency = decompiler.ErrMissingDependency
	// ErrDecompilation means the decompiler could not interpret the payload.
	ErrDecompilation = decompiler.ErrDecompilation
	// ErrReconstructionParse means the decompiled listing had an unexpected layout.
	ErrReconstructionParse = listing.ErrReconstructionParse
	// ErrInvalidSource means the input is not parseable Python.
	ErrInvalidSource = deobfuscator.ErrInvalidSource
)

// Deobfuscator recovers Specter-protected Python programs.
type Deobfuscator struct {
	// Config holds the settings the deobfuscator was built with
	Config *config.Config

	engine *deobfuscator.Deobfuscator
}

// Options represents configuration options for creating a new Deobfuscator.
type Options struct {
	// ConfigPath is the path to a YAML configuration file.
	// If empty, config.yaml in the working directory is used when present,
	// otherwise the defaults.
	ConfigPath string

	// Silent lowers logging to warnings and errors
	Silent bool

	// DecompilerPath overrides decompiler.path from the configuration
	DecompilerPath string
}

// DirSummary reports what a directory run did with each candidate file.
type DirSummary = deobfuscator.DirSummary

// NewDeobfuscator creates a Deobfuscator using the provided options.
// The decompiler is not looked up until it is first needed; call
// CheckDependencies to fail early.
func NewDeobfuscator(options Options) (*Deobfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if options.Silent {
		cfg.Silent = true
	}
	if options.DecompilerPath != "" {
		cfg.Decompiler.Path = options.DecompilerPath
	}
	return &Deobfuscator{Config: cfg, engine: deobfuscator.New(cfg)}, nil
}

// CheckDependencies verifies the configured decompiler is present.
func (d *Deobfuscator) CheckDependencies() error {
	return d.engine.CheckDependencies()
}

// DeobfuscateCode recovers the program hidden in code and returns it with
// Banner prepended.
func (d *Deobfuscator) DeobfuscateCode(ctx context.Context, code string) (string, error) {
	source, err := d.engine.Deobfuscate(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to deobfuscate code: %w", err)
	}
	return source, nil
}

// DeobfuscateFile recovers the program hidden in the file at filePath.
func (d *Deobfuscator) DeobfuscateFile(ctx context.Context, filePath string) (string, error) {
	res, err := d.engine.ProcessFile(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to deobfuscate file %s: %w", filePath, err)
	}
	return res.Source, nil
}

// DeobfuscateFileToFile recovers the program in inputPath and writes it to
// outputPath, replacing any existing content. outputPath is left untouched
// on failure.
func (d *Deobfuscator) DeobfuscateFileToFile(ctx context.Context, inputPath, outputPath string) error {
	if _, err := d.engine.ProcessFileToFile(ctx, inputPath, outputPath); err != nil {
		return fmt.Errorf("failed to deobfuscate file %s: %w", inputPath, err)
	}
	return nil
}

// DeobfuscateDirectory processes every Python file under inputDir and writes
// the results under outputDir with the configured suffix. Files that carry
// no payload are skipped and listed in the summary.
func (d *Deobfuscator) DeobfuscateDirectory(ctx context.Context, inputDir, outputDir string) (*DirSummary, error) {
	return d.engine.ProcessDir(ctx, inputDir, outputDir)
}
