package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/unspecter/internal/decompiler"
	"github.com/whit3rabbit/unspecter/internal/deobfuscator"
)

const protectedSource = `__x__ = (0, loads(0, b'\x10\x20'))
`

const hiddenSource = "print('recovered')\n"

func fakeListing(key int) string {
	tokens := make([]string, 0, len(hiddenSource))
	for _, r := range hiddenSource {
		tokens = append(tokens, strconv.Itoa(int(r)+key))
	}
	return strings.Join([]string{
		"# Source Generated with Decompyle++\n# File: marshalled.pym (Python 3.9)",
		"from builtins import *\n(Il,) = (b'" + strings.Join(tokens, `\x00`) + "',)",
		fmt.Sprintf("def lI(v):\n    return ''.join((lambda c: chr(int(c) - int(b'%d')))(c) for c in v.split(b'\\x00'))", key),
		"exec(''.join(map(lI, (Il,)))(\n    Il))\n",
	}, "\n\n")
}

func writeFakePycdc(t *testing.T, listing string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake decompiler is a POSIX shell script")
	}
	exe := filepath.Join(t.TempDir(), "pycdc")
	script := "#!/bin/sh\ncat <<'LISTING_EOF'\n" + listing + "LISTING_EOF\n"
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))
	return exe
}

// resetCommandState clears the package globals and every flag so each test
// starts from a freshly initialised command tree.
func resetCommandState() {
	cfg = nil
	logger = nil
	var visit func(c *cobra.Command)
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	visit = func(c *cobra.Command) {
		reset(c.Flags())
		reset(c.PersistentFlags())
		for _, sub := range c.Commands() {
			visit(sub)
		}
	}
	visit(rootCmd)
}

// run executes the CLI in an empty working directory and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommandState()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFileCommand_Stdout(t *testing.T) {
	exe := writeFakePycdc(t, fakeListing(300))
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("in.py", []byte(protectedSource), 0o644))

	out, err := run(t, "deobfuscate", "file", "in.py", "--stdout", "--silent", "--decompiler", exe)
	require.NoError(t, err)
	assert.Equal(t, deobfuscator.Banner+hiddenSource, out)
	assert.NoFileExists(t, "deobfuscated.py")
}

func TestFileCommand_Defaults(t *testing.T) {
	exe := writeFakePycdc(t, fakeListing(12))
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(defaultInputFile, []byte(protectedSource), 0o644))

	_, err := run(t, "deobfuscate", "file", "-s", "--decompiler", exe)
	require.NoError(t, err)

	written, err := os.ReadFile("deobfuscated.py")
	require.NoError(t, err)
	assert.Equal(t, deobfuscator.Banner+hiddenSource, string(written))
}

func TestFileCommand_OutputFlag(t *testing.T) {
	exe := writeFakePycdc(t, fakeListing(12))
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("in.py", []byte(protectedSource), 0o644))

	_, err := run(t, "deob", "file", "in.py", "-o", filepath.Join("out", "clean.py"), "-s", "--decompiler", exe)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join("out", "clean.py"))
}

func TestFileCommand_MissingDecompiler(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("in.py", []byte(protectedSource), 0o644))

	_, err := run(t, "deobfuscate", "file", "in.py", "-s", "--decompiler", filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, decompiler.ErrMissingDependency)
}

func TestDirCommand(t *testing.T) {
	exe := writeFakePycdc(t, fakeListing(5))
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll("src", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("src", "a.py"), []byte(protectedSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("src", "b.py"), []byte("pass\n"), 0o644))

	out, err := run(t, "deobfuscate", "dir", "src", "-o", "dst", "-s", "--decompiler", exe)
	require.NoError(t, err)
	assert.Contains(t, out, "processed: 1, skipped: 1, failed: 0")
	assert.FileExists(t, filepath.Join("dst", "a.deob.py"))
}

func TestDirCommand_RequiresOutput(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll("src", 0o755))

	_, err := run(t, "deobfuscate", "dir", "src", "-s")
	assert.ErrorContains(t, err, "output directory")
}

func TestInspectCommand(t *testing.T) {
	exe := writeFakePycdc(t, fakeListing(42))
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("in.py", []byte(protectedSource), 0o644))

	out, err := run(t, "inspect", "in.py", "-s", "--decompiler", exe)
	require.NoError(t, err)
	assert.Contains(t, out, "state:           done")
	assert.Contains(t, out, "payload symbols: 1 (2 bytes)")
	assert.Contains(t, out, "decode key:      42")
	assert.Contains(t, out, "state table:     1 entries, 0 skipped")
}

func TestConfigInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "config", "init", "-s")
	require.NoError(t, err)
	assert.Contains(t, out, "config.yaml")
	assert.FileExists(t, "config.yaml")

	_, err = run(t, "config", "init", "-s")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", "init", "--force", "-s")
	assert.NoError(t, err)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("custom.yaml", []byte("abort_on_error: true\ndecompiler:\n  path: /from/file\n  version: \"3.8\"\n"), 0o644))

	_, err := run(t, "--config", "custom.yaml", "--abort-on-error=false", "--py-version", "3.9", "-s")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.False(t, cfg.AbortOnError)
	assert.Equal(t, "3.9", cfg.Decompiler.Version)
	assert.Equal(t, "/from/file", cfg.Decompiler.Path)
	assert.True(t, cfg.Silent)
}
