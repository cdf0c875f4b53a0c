package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cropocr/internal/testutil"
)

// isolate runs the test in an empty directory with an empty HOME so no
// config file on the machine is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Chdir(dir)
	return dir
}

// execute runs a fresh command tree and returns stdout and stderr separately.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := GetRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeLabel writes the 1000x600 quadrant test image and returns its path.
func writeLabel(t *testing.T, dir string) string {
	t.Helper()
	return testutil.WriteImage(t, testutil.QuadrantImage(1000, 600), filepath.Join(dir, "label.png"))
}

func TestRootCommand(t *testing.T) {
	cmd := GetRootCommand()
	assert.Equal(t, "cropocr", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("layout"))
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "annotated regions")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandNoArgsShowsHelp(t *testing.T) {
	isolate(t)
	out, _, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := GetRootCommand()
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"extract", "batch", "preview", "canvas", "layouts", "serve", "config"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, _, err := execute(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommandInvalidLogLevel(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "layouts", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading configuration")
}

func TestRootCommandConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layout: rect2\n"), 0o600))

	out, _, err := execute(t, "--config", path, "layouts")
	require.NoError(t, err)
	assert.Contains(t, out, "rect2 *")
}

func TestRootCommandTreesAreIndependent(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "--layout", "rect2", "layouts")
	require.NoError(t, err)
	assert.Contains(t, out, "rect2 *")

	out, _, err = execute(t, "layouts")
	require.NoError(t, err)
	assert.Contains(t, out, "points3 *")
	assert.NotContains(t, out, "rect2 *")
}

func TestCropFileName(t *testing.T) {
	assert.Equal(t, "00_code_bar.jpg", cropFileName(0, "Code Bar"))
	assert.Equal(t, "12_a_b.jpg", cropFileName(12, "a/b"))
	assert.Equal(t, "01_expediteur.jpg", cropFileName(1, "Expediteur"))
}
