package decompiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeDecompiler creates a shell script standing in for pycdc. It records
// its arguments and a copy of the payload into recordDir, then prints body.
func writeFakeDecompiler(t *testing.T, body string, exitCode int) (exe, recordDir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake decompiler is a POSIX shell script")
	}
	dir := t.TempDir()
	recordDir = filepath.Join(dir, "record")
	require.NoError(t, os.Mkdir(recordDir, 0o755))

	script := "#!/bin/sh\n" +
		"echo \"$@\" > '" + recordDir + "/args'\n" +
		"echo \"$1\" > '" + recordDir + "/payload_path'\n" +
		"cp \"$1\" '" + recordDir + "/payload'\n" +
		"cat <<'LISTING_EOF'\n" + body + "LISTING_EOF\n" +
		"exit " + string(rune('0'+exitCode)) + "\n"

	exe = filepath.Join(dir, "pycdc")
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))
	return exe, recordDir
}

func lines(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString("# line\n")
	}
	return sb.String()
}

func testOptions(path string) Options {
	return Options{Path: path, ModeFlag: "-c", VersionFlag: "-v", Version: "3.9", MinLines: 5}
}

func readRecord(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestDecompile_Success(t *testing.T) {
	exe, record := writeFakeDecompiler(t, lines(6), 0)
	blob := []byte{0xe3, 0x00, 0x01, 'x'}

	out, err := New(testOptions(exe)).Decompile(context.Background(), blob)
	require.NoError(t, err)
	assert.Equal(t, lines(6), out)

	payloadPath := readRecord(t, record, "payload_path")
	assert.Equal(t, payloadPath+" -c -v 3.9", readRecord(t, record, "args"))
	assert.Equal(t, payloadFileName, filepath.Base(payloadPath))

	copied, err := os.ReadFile(filepath.Join(record, "payload"))
	require.NoError(t, err)
	assert.Equal(t, blob, copied)

	_, err = os.Stat(payloadPath)
	assert.True(t, os.IsNotExist(err), "temporary payload must be removed after the run")
}

func TestDecompile_TooFewLines(t *testing.T) {
	exe, record := writeFakeDecompiler(t, lines(5), 0)

	_, err := New(testOptions(exe)).Decompile(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecompilation))

	_, statErr := os.Stat(readRecord(t, record, "payload_path"))
	assert.True(t, os.IsNotExist(statErr), "temporary payload must be removed after a failure")
}

func TestDecompile_NonZeroExitWithEnoughOutput(t *testing.T) {
	exe, _ := writeFakeDecompiler(t, lines(8), 1)

	out, err := New(testOptions(exe)).Decompile(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 8, CountLines(out))
}

func TestDecompile_MissingExecutable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "decompylepp", "pycdc")

	_, err := New(testOptions(missing)).Decompile(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDependency))
	assert.Contains(t, err.Error(), missing)
}

func TestLookPath_DirectoryIsNotAnExecutable(t *testing.T) {
	_, err := New(testOptions(t.TempDir())).LookPath()
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestLookPath_EmptyPath(t *testing.T) {
	_, err := New(Options{}).LookPath()
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestCheckListing(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"empty", "", true},
		{"five lines", lines(5), true},
		{"five lines no trailing newline", strings.TrimSuffix(lines(5), "\n"), true},
		{"six lines", lines(6), false},
		{"six lines no trailing newline", strings.TrimSuffix(lines(6), "\n"), false},
		{"invalid utf8", lines(6) + "\xff\xfe\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := CheckListing([]byte(tt.raw), 5)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDecompilation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, text)
		})
	}
}

func TestCheckListing_NormalisesCRLF(t *testing.T) {
	text, err := CheckListing([]byte(strings.Repeat("a\r\n", 6)), 5)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a\n", 6), text)
}

func TestCheckListing_NormalisesLoneCR(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"cr only", strings.Repeat("a\r", 6), strings.Repeat("a\n", 6)},
		{"mixed", "a\r\nb\rc\nd\r\re\nf\r", "a\nb\nc\nd\n\ne\nf\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := CheckListing([]byte(tt.raw), 5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			assert.NotContains(t, text, "\r")
		})
	}
}

func TestCheckListing_LoneCRCountsAsLineBreak(t *testing.T) {
	_, err := CheckListing([]byte(strings.Repeat("a\r", 5)), 5)
	assert.ErrorIs(t, err, ErrDecompilation)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 1, CountLines("a"))
	assert.Equal(t, 1, CountLines("a\n"))
	assert.Equal(t, 2, CountLines("a\n\n"))
	assert.Equal(t, 2, CountLines("a\nb"))
}

func TestOptionsArgs(t *testing.T) {
	assert.Equal(t, []string{"p", "-c", "-v", "3.9"}, testOptions("x").Args("p"))
	assert.Equal(t, []string{"p"}, Options{}.Args("p"))
}
