// Package decompiler runs the external pycdc (Decompyle++) binary over a
// marshalled code object and returns its textual listing.
package decompiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/whit3rabbit/unspecter/internal/log"
)

var (
	// ErrMissingDependency means the decompiler executable is not installed
	// at the configured location.
	ErrMissingDependency = errors.New("decompiler executable not found")

	// ErrDecompilation means the decompiler ran but produced too little
	// output to be a listing, usually because the bytecode version hint is
	// wrong for the payload.
	ErrDecompilation = errors.New("decompilation failed")
)

// payloadFileName is the name of the temporary file handed to the decompiler.
const payloadFileName = "marshalled.pym"

// Options configure the decompiler invocation.
type Options struct {
	Path        string
	ModeFlag    string // "-c": input is a bare marshalled code object
	VersionFlag string // "-v"
	Version     string // "3.9"
	MinLines    int    // output needs strictly more lines than this
}

// ArgHandler abstracts how the payload path and fixed flags become command
// line arguments for the decompiler.
type ArgHandler interface {
	Args(payloadPath string) []string
}

// Args implements ArgHandler using pycdc's `<file> -c -v <version>` form.
func (o Options) Args(payloadPath string) []string {
	args := []string{payloadPath}
	if o.ModeFlag != "" {
		args = append(args, o.ModeFlag)
	}
	if o.VersionFlag != "" && o.Version != "" {
		args = append(args, o.VersionFlag, o.Version)
	}
	return args
}

// Decompiler invokes the external tool. It holds no per-run state.
type Decompiler struct {
	opts Options
	args ArgHandler
}

// New returns a Decompiler for opts.
func New(opts Options) *Decompiler {
	return &Decompiler{opts: opts, args: opts}
}

// Path returns the configured executable path.
func (d *Decompiler) Path() string {
	return d.opts.Path
}

// LookPath resolves the executable, failing with ErrMissingDependency when it
// is absent. Bare names without a path separator are also searched for in
// PATH.
func (d *Decompiler) LookPath() (string, error) {
	path := d.opts.Path
	if path == "" {
		return "", fmt.Errorf("%w: no path configured", ErrMissingDependency)
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}
	if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
		if found, err := exec.LookPath(path); err == nil {
			return found, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMissingDependency, path)
}

// Decompile writes blob to a scoped temporary file, runs the decompiler on it
// and returns the captured standard output.
//
// The exit status is not authoritative: pycdc can exit 0 after printing only
// an error banner, so success is judged by line count alone. The temporary
// directory is removed on every return path. Records go to the logger
// carried by ctx.
func (d *Decompiler) Decompile(ctx context.Context, blob []byte) (string, error) {
	exe, err := d.LookPath()
	if err != nil {
		return "", err
	}

	logger := log.FromContext(ctx)
	workingDir, err := os.MkdirTemp("", "unspecter-decompile-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp working directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workingDir); err != nil {
			logger.ErrorContext(ctx, "could not remove working directory", "path", workingDir, "error", err)
		}
	}()

	payloadPath := filepath.Join(workingDir, payloadFileName)
	if err := os.WriteFile(payloadPath, blob, 0o600); err != nil {
		return "", fmt.Errorf("failed to write marshalled bytecode: %w", err)
	}
	logger.DebugContext(ctx, "stored marshalled bytecode", "path", payloadPath, "bytes", len(blob))

	cmd := exec.CommandContext(ctx, exe, d.args.Args(payloadPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.InfoContext(ctx, "started decompilation", "decompiler", exe, "args", cmd.Args[1:])
	stdout, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to run decompiler %s: %w", exe, err)
		}
		logger.WarnContext(ctx, "decompiler exited with non-zero status",
			"exit_code", exitErr.ExitCode(), "stderr", strings.TrimSpace(stderr.String()))
	}

	return CheckListing(stdout, d.opts.MinLines)
}

// CheckListing decodes raw decompiler output as UTF-8 text and applies the
// line-count success criterion: more than minLines lines are required.
// Line endings are normalised to "\n", including lone carriage returns.
func CheckListing(raw []byte, minLines int) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: output is not valid UTF-8", ErrDecompilation)
	}
	text := newlines.Replace(string(raw))
	n := CountLines(text)
	if n <= minLines {
		return "", fmt.Errorf("%w: got %d output lines, need more than %d", ErrDecompilation, n, minLines)
	}
	return text, nil
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// CountLines counts lines the way a line iterator does: every "\n" ends a
// line, and trailing text without a newline is one more line.
func CountLines(text string) int {
	n := strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
