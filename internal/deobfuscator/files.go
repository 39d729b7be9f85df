package deobfuscator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/whit3rabbit/unspecter/internal/extractor"
)

// ProcessFile deobfuscates inputPath and returns the result. Nothing is
// written.
func (d *Deobfuscator) ProcessFile(ctx context.Context, inputPath string) (*Result, error) {
	content, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %s: %w", inputPath, err)
	}
	return d.Run(ctx, inputPath, string(content))
}

// ProcessFileToFile deobfuscates inputPath and writes the result to
// outputPath, replacing any existing content. The output is not touched when
// the run fails.
func (d *Deobfuscator) ProcessFileToFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	res, err := d.ProcessFile(ctx, inputPath)
	if err != nil {
		return res, err
	}
	if err := writeOutput(outputPath, res.Source); err != nil {
		return res, err
	}
	d.logger.InfoContext(ctx, "wrote deobfuscated source", "file", inputPath, "output", outputPath)
	return res, nil
}

func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	return nil
}

// DirSummary lists what a directory run did with each candidate file.
// Paths are relative to the source directory.
type DirSummary struct {
	Processed []string
	Skipped   []string // not instances of the scheme
	Failed    []string
}

// ProcessDir deobfuscates every source file under srcDir into dstDir,
// keeping the relative layout and replacing each file's extension with the
// configured output suffix.
//
// Files without embedded payload symbols are skipped. Other failures stop
// the walk when AbortOnError is set and are otherwise collected into the
// returned error.
func (d *Deobfuscator) ProcessDir(ctx context.Context, srcDir, dstDir string) (*DirSummary, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source directory %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", srcDir)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dstDir, err)
	}

	summary := &DirSummary{}
	var collected []error

	walkErr := filepath.WalkDir(srcDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			err = fmt.Errorf("error accessing path %q: %w", path, err)
			if d.cfg.AbortOnError {
				return err
			}
			collected = append(collected, err)
			return nil
		}
		if path == srcDir {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		skip, err := matchesAny(rel, d.cfg.SkipPaths)
		if err != nil {
			return err
		}
		if skip {
			d.logger.DebugContext(ctx, "skipping path (matches skip list)", "path", rel)
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !hasExtension(entry.Name(), d.cfg.Extensions) {
			return nil
		}

		outPath := filepath.Join(dstDir, outputName(rel, d.cfg.Output.Suffix))
		_, err = d.ProcessFileToFile(ctx, path, outPath)
		switch {
		case err == nil:
			summary.Processed = append(summary.Processed, rel)
		case errors.Is(err, extractor.ErrSchemeMismatch):
			d.logger.WarnContext(ctx, "no embedded payload found, skipping", "path", rel)
			summary.Skipped = append(summary.Skipped, rel)
		default:
			summary.Failed = append(summary.Failed, rel)
			err = fmt.Errorf("%s: %w", rel, err)
			if d.cfg.AbortOnError {
				return err
			}
			collected = append(collected, err)
		}
		return nil
	})
	if walkErr != nil {
		return summary, walkErr
	}

	d.logger.InfoContext(ctx, "directory run finished",
		"processed", len(summary.Processed), "skipped", len(summary.Skipped), "failed", len(summary.Failed))
	if len(collected) > 0 {
		return summary, fmt.Errorf("directory processing finished with %d errors: %w", len(collected), errors.Join(collected...))
	}
	return summary, nil
}

// matchesAny reports whether relPath, or its final element, matches one of
// the glob patterns. Paths are matched with forward slashes.
func matchesAny(relPath string, patterns []string) (bool, error) {
	normalized := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		for _, candidate := range []string{normalized, base} {
			matched, err := filepath.Match(pattern, candidate)
			if err != nil {
				return false, fmt.Errorf("invalid skip pattern '%s': %w", pattern, err)
			}
			if matched {
				return true, nil
			}
		}
	}
	return false, nil
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, e := range extensions {
		if ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

// outputName replaces the extension of rel with suffix.
func outputName(rel, suffix string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + suffix
}
