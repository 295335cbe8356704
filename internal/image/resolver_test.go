package image

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a git repository with a single commit and returns its
// directory and the full commit hash.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "dev",
			Email: "dev@example.com",
			When:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func TestResolve_GitShortCommit(t *testing.T) {
	dir, hash := initRepo(t)

	res := Resolve("", dir, "", "latest")
	assert.Equal(t, SourceGit, res.Source)
	assert.Equal(t, hash[:7], res.Tag)
	assert.True(t, res.Pinned())
}

func TestResolve_OverrideWins(t *testing.T) {
	dir, _ := initRepo(t)

	res := Resolve("v1.2.3", dir, "", "latest")
	assert.Equal(t, SourceOverride, res.Source)
	assert.Equal(t, "v1.2.3", res.Tag)
	assert.True(t, res.Pinned())
}

func TestResolve_FallbackPath(t *testing.T) {
	dir, hash := initRepo(t)
	noRepo := t.TempDir()

	res := Resolve("", noRepo, dir, "latest")
	assert.Equal(t, SourceGit, res.Source)
	assert.Equal(t, hash[:7], res.Tag)
}

func TestResolve_DefaultLiteral(t *testing.T) {
	res := Resolve("", t.TempDir(), t.TempDir(), "latest")
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, "latest", res.Tag)
	assert.False(t, res.Pinned())
}

func TestResolve_Deterministic(t *testing.T) {
	dir, _ := initRepo(t)

	first := Resolve("", dir, "", "latest")
	second := Resolve("", dir, "", "latest")
	assert.Equal(t, first, second)
}

func TestResolve_SubdirectoryOfCheckout(t *testing.T) {
	dir, hash := initRepo(t)
	sub := filepath.Join(dir, "server")
	require.NoError(t, os.Mkdir(sub, 0755))

	res := Resolve("", sub, "", "latest")
	assert.Equal(t, SourceGit, res.Source)
	assert.Equal(t, hash[:7], res.Tag)
}
