package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ms-lang/ms/pkg/ms"
)

func withArgs(t *testing.T, args []string, fn func()) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"ms"}, args...)
	defer func() { os.Args = old }()
	fn()
}

func TestRunScriptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.ms")
	require.NoError(t, os.WriteFile(path, []byte("print(1 + 2 * 3)\n"), 0o644))

	var code int
	withArgs(t, []string{path}, func() { code = run() })
	require.Equal(t, ms.ExitOK, code)
}

func TestRunMissingFileIsUsageError(t *testing.T) {
	var code int
	withArgs(t, []string{"/no/such/file.ms"}, func() { code = run() })
	require.Equal(t, ms.ExitUsageError, code)
}

func TestRunCompileErrorExitCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ms")
	require.NoError(t, os.WriteFile(path, []byte("1 +\n"), 0o644))

	var code int
	withArgs(t, []string{path}, func() { code = run() })
	require.Equal(t, ms.ExitCompileError, code)
}

func TestRunRuntimeErrorExitCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "div0.ms")
	require.NoError(t, os.WriteFile(path, []byte("print(1 / 0)\n"), 0o644))

	var code int
	withArgs(t, []string{path}, func() { code = run() })
	require.Equal(t, ms.ExitRuntimeError, code)
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	var code int
	withArgs(t, []string{"-bogus"}, func() { code = run() })
	require.Equal(t, ms.ExitUsageError, code)
}
