package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPathDefault(t *testing.T) {
	path, err := resolveConfigPath(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultConfigFile, path)
}

func TestResolveConfigPathFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "staging.pkl")
	require.NoError(t, os.WriteFile(file, []byte("project = \"demo\"\n"), 0o644))

	path, err := resolveConfigPath([]string{file})
	require.NoError(t, err)
	assert.Equal(t, file, path)
}

func TestResolveConfigPathDirectory(t *testing.T) {
	dir := t.TempDir()

	path, err := resolveConfigPath([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, defaultConfigFile), path)
}

func TestResolveConfigPathMissing(t *testing.T) {
	_, err := resolveConfigPath([]string{filepath.Join(t.TempDir(), "nope.pkl")})
	assert.Error(t, err)
}

// An offline build cannot reach ECR or the local daemon, so asking for an
// image check at the same time is a contradiction, not a silent no-op.
func TestBuildRejectsCheckImageOffline(t *testing.T) {
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"build", "--check-image", "--offline"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		buildCheckImage = false
		buildOffline = false
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check-image")
	assert.Contains(t, err.Error(), "offline")
}
