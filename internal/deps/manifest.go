package deps

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
)

// Dependency is a package declared in a manifest.
type Dependency struct {
	Name      string    `json:"name"`
	Ecosystem Ecosystem `json:"ecosystem"`
	Line      int       `json:"line"`
}

// IsManifest reports whether the file at p is a supported manifest.
func IsManifest(p string) bool {
	base := path.Base(p)
	switch {
	case base == "pyproject.toml", base == "package.json", base == "go.mod":
		return true
	case strings.HasPrefix(base, "requirements") && strings.HasSuffix(base, ".txt"):
		return true
	}
	return false
}

// ParseManifest extracts declared dependencies from a manifest file.
func ParseManifest(p string, data []byte) ([]Dependency, error) {
	base := path.Base(p)
	switch {
	case base == "pyproject.toml":
		return parsePyproject(data)
	case base == "package.json":
		return parsePackageJSON(data)
	case base == "go.mod":
		return parseGoMod(p, data)
	case strings.HasPrefix(base, "requirements") && strings.HasSuffix(base, ".txt"):
		return parseRequirements(data), nil
	default:
		return nil, fmt.Errorf("unsupported manifest %q", base)
	}
}

// requirementName matches the distribution name at the start of a PEP 508
// requirement.
var requirementName = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

func parseRequirements(data []byte) []Dependency {
	var out []Dependency
	sc := bufio.NewScanner(bytes.NewReader(data))
	no := 0
	for sc.Scan() {
		no++
		line := sc.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			continue
		}
		if m := requirementName.FindStringSubmatch(line); m != nil {
			out = append(out, Dependency{Name: m[1], Ecosystem: PyPI, Line: no})
		}
	}
	return out
}

type pyproject struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyproject(data []byte) ([]Dependency, error) {
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pyproject.toml: %w", err)
	}
	var names []string
	addSpecs := func(specs []string) {
		for _, s := range specs {
			if m := requirementName.FindStringSubmatch(s); m != nil {
				names = append(names, m[1])
			}
		}
	}
	addKeys := func(m map[string]any) {
		for k := range m {
			if strings.ToLower(k) != "python" {
				names = append(names, k)
			}
		}
	}
	addSpecs(doc.Project.Dependencies)
	for _, specs := range doc.Project.OptionalDependencies {
		addSpecs(specs)
	}
	addKeys(doc.Tool.Poetry.Dependencies)
	addKeys(doc.Tool.Poetry.DevDependencies)
	for _, g := range doc.Tool.Poetry.Group {
		addKeys(g.Dependencies)
	}
	return located(data, PyPI, names), nil
}

type packageJSON struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

func parsePackageJSON(data []byte) ([]Dependency, error) {
	var doc packageJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	var names []string
	for _, m := range []map[string]string{doc.Dependencies, doc.DevDependencies, doc.PeerDependencies, doc.OptionalDependencies} {
		for name := range m {
			names = append(names, name)
		}
	}
	return located(data, NPM, names), nil
}

func parseGoMod(p string, data []byte) ([]Dependency, error) {
	f, err := modfile.Parse(p, data, nil)
	if err != nil {
		return nil, fmt.Errorf("parse go.mod: %w", err)
	}
	out := make([]Dependency, 0, len(f.Require))
	for _, r := range f.Require {
		line := 0
		if r.Syntax != nil {
			line = r.Syntax.Start.Line
		}
		out = append(out, Dependency{Name: r.Mod.Path, Ecosystem: Go, Line: line})
	}
	return out, nil
}

// located deduplicates names, orders them, and finds the line each is
// first mentioned on.
func located(data []byte, eco Ecosystem, names []string) []Dependency {
	slices.Sort(names)
	names = slices.Compact(names)
	lines := strings.Split(string(data), "\n")
	out := make([]Dependency, 0, len(names))
	for _, name := range names {
		out = append(out, Dependency{Name: name, Ecosystem: eco, Line: lineOf(lines, name)})
	}
	slices.SortStableFunc(out, func(a, b Dependency) int { return a.Line - b.Line })
	return out
}

func lineOf(lines []string, name string) int {
	quoted := []string{`"` + name + `"`, `'` + name, `"` + name}
	for i, ln := range lines {
		for _, q := range quoted {
			if strings.Contains(ln, q) {
				return i + 1
			}
		}
		if strings.HasPrefix(strings.TrimSpace(ln), name) {
			return i + 1
		}
	}
	return 1
}

// ModulePath returns the module path declared by go.mod data, or "".
func ModulePath(data []byte) string {
	return modfile.ModulePath(data)
}
