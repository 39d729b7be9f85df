// Package deobfuscator sequences the three recovery stages into one
// pipeline: payload extraction, decompilation and reconstruction.
package deobfuscator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/whit3rabbit/unspecter/internal/config"
	"github.com/whit3rabbit/unspecter/internal/decoder"
	"github.com/whit3rabbit/unspecter/internal/decompiler"
	"github.com/whit3rabbit/unspecter/internal/extractor"
	"github.com/whit3rabbit/unspecter/internal/listing"
	"github.com/whit3rabbit/unspecter/internal/log"
	"github.com/whit3rabbit/unspecter/internal/pysyntax"
)

// Banner is prepended to every reconstructed source.
const Banner = "################# WARNING ##################\n" +
	"#   THIS FILE WAS PREVIOUSLY OBFUSCATED!   #\n" +
	"# DO NOT RUN IT UNLESS YOU TRUST THE CODE. #\n" +
	"############################################\n" +
	"\n"

// ErrInvalidSource is returned when the input program cannot be parsed.
var ErrInvalidSource = errors.New("input is not valid Python source")

// State is a pipeline position.
type State int

const (
	StateInit State = iota
	StateExtract
	StateDecompile
	StateReconstruct
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:        "init",
	StateExtract:     "extract",
	StateDecompile:   "decompile",
	StateReconstruct: "reconstruct",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StageError reports the stage a run failed in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Runner turns a marshalled bytecode blob into a decompiled listing.
// *decompiler.Decompiler satisfies it.
type Runner interface {
	Decompile(ctx context.Context, blob []byte) (string, error)
}

// Result describes one run. Source is set only when State is StateDone.
type Result struct {
	State State

	SkippedStatements int // top-level statements the parser could not read
	Symbols           int // payload symbols harvested
	BlobSize          int // bytes handed to the decompiler
	ListingLines      int
	Key               int
	TableEntries      int
	SkippedEntries    int // state table values that were not literals
	OrderLength       int

	Source string
}

// Deobfuscator runs the pipeline with a fixed configuration. It holds no
// per-run state and may be shared.
type Deobfuscator struct {
	cfg    *config.Config
	runner Runner
	logger *slog.Logger
}

// New returns a Deobfuscator that invokes the decompiler configured in cfg.
func New(cfg *config.Config) *Deobfuscator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewWithRunner(cfg, decompiler.New(decompiler.Options{
		Path:        cfg.Decompiler.Path,
		ModeFlag:    cfg.Decompiler.ModeFlag,
		VersionFlag: cfg.Decompiler.VersionFlag,
		Version:     cfg.Decompiler.Version,
		MinLines:    cfg.Decompiler.MinLines,
	}))
}

// NewWithRunner returns a Deobfuscator that uses runner for stage B.
//
// Records go to the slog default handler as it is at construction time,
// filtered by cfg.Silent and cfg.DebugMode.
func NewWithRunner(cfg *config.Config, runner Runner) *Deobfuscator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Deobfuscator{
		cfg:    cfg,
		runner: runner,
		logger: log.New(log.Options{Silent: cfg.Silent, Debug: cfg.DebugMode}),
	}
}

// CheckDependencies verifies the decompiler executable is present, when the
// runner is able to tell.
func (d *Deobfuscator) CheckDependencies() error {
	type pathChecker interface {
		LookPath() (string, error)
	}
	if pc, ok := d.runner.(pathChecker); ok {
		_, err := pc.LookPath()
		return err
	}
	return nil
}

// Deobfuscate recovers the original program from src and returns it with
// the banner prepended.
func (d *Deobfuscator) Deobfuscate(ctx context.Context, src string) (string, error) {
	res, err := d.Run(ctx, "<input>", src)
	if err != nil {
		return "", err
	}
	return res.Source, nil
}

// Run executes every stage on src. filename is used in diagnostics only.
// The returned Result is never nil; on failure its State is StateFailed and
// err is a *StageError.
func (d *Deobfuscator) Run(ctx context.Context, filename, src string) (*Result, error) {
	logger := d.logger.With("file", filename)
	ctx = log.NewContext(ctx, logger)

	res := &Result{State: StateInit}
	fail := func(err error) (*Result, error) {
		stage := res.State
		res.State = StateFailed
		logger.ErrorContext(ctx, "stage failed", "stage", stage.String(), "error", err)
		return res, &StageError{Stage: stage, Err: err}
	}

	res.State = StateExtract
	logger.DebugContext(ctx, "extracting payload symbols")
	mod, err := pysyntax.ParseLenient(src, filename)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidSource, err))
	}
	for _, skipped := range mod.Skipped() {
		logger.WarnContext(ctx, "ignoring statement the parser does not support",
			"line", skipped.Line, "error", skipped.Err)
	}
	res.SkippedStatements = len(mod.Skipped())
	symbols, err := extractor.Extract(mod)
	if err != nil {
		return fail(err)
	}
	blob := symbols.Blob()
	res.Symbols = symbols.Len()
	res.BlobSize = len(blob)
	logger.InfoContext(ctx, "extracted payload symbols", "symbols", res.Symbols, "bytes", res.BlobSize)

	res.State = StateDecompile
	text, err := d.runner.Decompile(ctx, blob)
	if err != nil {
		return fail(err)
	}
	res.ListingLines = decompiler.CountLines(text)
	logger.InfoContext(ctx, "decompiled payload", "lines", res.ListingLines)

	res.State = StateReconstruct
	artifacts, err := listing.Parse(text)
	if err != nil {
		return fail(err)
	}
	res.Key = artifacts.Key
	res.TableEntries = artifacts.Table.Len()
	res.SkippedEntries = len(artifacts.Table.Skipped())
	res.OrderLength = len(artifacts.Order)
	if res.SkippedEntries > 0 {
		logger.DebugContext(ctx, "state table entries without literal values",
			"names", artifacts.Table.Skipped())
	}
	logger.InfoContext(ctx, "parsed listing",
		"key", res.Key, "entries", res.TableEntries, "order", res.OrderLength)

	decoded, err := decoder.Decode(artifacts)
	if err != nil {
		return fail(err)
	}

	res.Source = Banner + decoded
	res.State = StateDone
	logger.InfoContext(ctx, "reconstructed source", "chars", len(decoded))
	return res, nil
}
