package scan

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/moby/patternmatcher"

	"github.com/roach88/warden/internal/deps"
	"github.com/roach88/warden/internal/lang"
)

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{
	".git", ".hg", ".svn", ".venv", ".warden", "__pycache__",
	"build", "dist", "node_modules", "vendor", "venv",
}

// tree is the walked project: slash-separated paths relative to the root,
// each list sorted.
type tree struct {
	sources   []string
	manifests []string
}

func walk(ctx context.Context, root string, skip map[string]bool, exclude *patternmatcher.PatternMatcher) (*tree, error) {
	t := &tree{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtrees are skipped; files inside them were never
			// seen, so they are not reported.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && (skip[d.Name()] || excluded(exclude, rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || excluded(exclude, rel) {
			return nil
		}
		switch {
		case deps.IsManifest(rel):
			t.manifests = append(t.manifests, rel)
		case lang.Detect(rel) != lang.Unknown:
			t.sources = append(t.sources, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(t.sources)
	slices.Sort(t.manifests)
	return t, nil
}

func excluded(pm *patternmatcher.PatternMatcher, rel string) bool {
	if pm == nil {
		return false
	}
	ok, err := pm.MatchesOrParentMatches(rel)
	return err == nil && ok
}
