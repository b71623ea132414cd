package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/ir"
)

// ProjectFile is the project configuration file name.
const ProjectFile = "warden.cue"

// FeaturesDir is the directory scanned for feature definitions.
const FeaturesDir = "features"

// Load builds a store from the configuration under dir:
//
//	warden.cue                  project settings and inline features
//	features/**/*.{yaml,yml,cue}
//	app/features/<name>/state.yaml
//
// Every source is compiled before anything is validated; any failure
// returns a *compiler.ConfigError and no store.
func Load(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &compiler.ConfigError{Source: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &compiler.ConfigError{Source: dir, Err: fmt.Errorf("not a directory")}
	}

	files, err := discover(dir)
	if err != nil {
		return nil, &compiler.ConfigError{Source: dir, Err: err}
	}

	var (
		project *ir.ProjectConfig
		specs   []*ir.FeatureSpec
		errs    []error
	)
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			errs = append(errs, err)
			continue
		}

		switch {
		case rel == ProjectFile:
			cfg, err := compiler.CompileProject(data, rel)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", rel, err))
				continue
			}
			project = cfg
			inline, err := compiler.CompileFeatureSource(data, rel)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", rel, err))
				continue
			}
			specs = append(specs, inline...)

		case strings.HasSuffix(rel, ".cue"):
			found, err := compiler.CompileFeatureSource(data, rel)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", rel, err))
				continue
			}
			specs = append(specs, found...)

		default:
			spec, err := compiler.DecodeFeatureYAML(data, rel)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			specs = append(specs, spec)
		}
	}
	if len(errs) > 0 {
		return nil, &compiler.ConfigError{Source: dir, Err: errors.Join(errs...)}
	}

	store, err := NewWithProject(project, specs...)
	if err != nil {
		var ce *compiler.ConfigError
		if errors.As(err, &ce) && ce.Source == "" {
			ce.Source = dir
		}
		return nil, err
	}
	store.sources = files
	return store, nil
}

// discover lists configuration files under dir as slash-separated paths
// relative to it, project file first.
func discover(dir string) ([]string, error) {
	var files []string
	if _, err := os.Stat(filepath.Join(dir, ProjectFile)); err == nil {
		files = append(files, ProjectFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var found []string
	featuresRoot := filepath.Join(dir, FeaturesDir)
	err := filepath.WalkDir(featuresRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == featuresRoot && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != featuresRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml", ".cue":
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	colocated, err := filepath.Glob(filepath.Join(dir, "app", "features", "*", "state.yaml"))
	if err != nil {
		return nil, err
	}
	for _, path := range colocated {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil, err
		}
		found = append(found, filepath.ToSlash(rel))
	}

	slices.Sort(found)
	return append(files, found...), nil
}
