// Package image resolves the deployable image reference: an immutable,
// commit-addressed tag when git history is available, a configured override
// when pinned explicitly, and a best-effort default otherwise.
package image

import (
	"fmt"

	git "github.com/go-git/go-git/v5"

	"github.com/descry-io/descry/internal/logging"
)

// Source records how a tag was resolved.
type Source string

const (
	SourceOverride Source = "override"
	SourceGit      Source = "git"
	SourceFallback Source = "fallback"
)

// shortLen matches `git rev-parse --short` default output.
const shortLen = 7

// Resolution is the outcome of tag resolution.
type Resolution struct {
	Tag    string
	Source Source
}

// Pinned reports whether the tag identifies a fixed artifact (an override
// or a commit hash) rather than a floating label.
func (r Resolution) Pinned() bool {
	return r.Source != SourceFallback
}

// Resolve picks the image tag with the precedence: explicit override, git
// short commit at projectPath, git short commit at fallbackPath, then the
// default literal. Resolution failures are recovered locally: the build
// continues on the next source and the last resort is logged as a warning.
func Resolve(override, projectPath, fallbackPath, defaultTag string) Resolution {
	if override != "" {
		return Resolution{Tag: override, Source: SourceOverride}
	}

	for _, path := range []string{projectPath, fallbackPath} {
		if path == "" {
			continue
		}
		tag, err := shortCommit(path)
		if err != nil {
			logging.Debug("git resolution failed", "path", path, "error", err)
			continue
		}
		return Resolution{Tag: tag, Source: SourceGit}
	}

	logging.Warn("could not resolve a commit tag, falling back to unpinned default",
		"tag", defaultTag)
	return Resolution{Tag: defaultTag, Source: SourceFallback}
}

// shortCommit reads the abbreviated HEAD commit hash of the checkout at
// path.
func shortCommit(path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD at %s: %w", path, err)
	}

	return head.Hash().String()[:shortLen], nil
}
