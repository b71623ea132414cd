package lang

import (
	"path"
	"sort"
	"strings"
)

// family groups languages that share one module namespace.
func family(l Language) string {
	switch l {
	case JavaScript, TypeScript:
		return "js"
	default:
		return string(l)
	}
}

// ModuleID returns the module identifier of the slash-separated relative
// file path rel. goModule is the module path from go.mod, if any.
func ModuleID(rel, goModule string) string {
	rel = path.Clean(rel)
	switch Detect(rel) {
	case Python:
		id := strings.TrimSuffix(rel, path.Ext(rel))
		id = strings.TrimSuffix(id, "/__init__")
		if id == "__init__" {
			return ""
		}
		return strings.ReplaceAll(id, "/", ".")
	case JavaScript, TypeScript:
		id := strings.TrimSuffix(rel, path.Ext(rel))
		if id == "index" {
			return "."
		}
		return strings.TrimSuffix(id, "/index")
	case Go:
		dir := path.Dir(rel)
		switch {
		case goModule == "":
			return dir
		case dir == ".":
			return goModule
		default:
			return goModule + "/" + dir
		}
	default:
		return rel
	}
}

// Index maps module identifiers to the files that define them.
type Index struct {
	goModule string
	ids      map[string]string
	modules  map[string]map[string][]string
}

// NewIndex indexes slash-separated relative file paths.
func NewIndex(files []string, goModule string) *Index {
	idx := &Index{
		goModule: goModule,
		ids:      make(map[string]string, len(files)),
		modules:  make(map[string]map[string][]string),
	}
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, f := range sorted {
		l := Detect(f)
		if l == Unknown {
			continue
		}
		id := ModuleID(f, goModule)
		idx.ids[f] = id
		idx.add(family(l), id, f)
		if l == Python && strings.HasPrefix(id, "src.") {
			idx.add(family(l), strings.TrimPrefix(id, "src."), f)
		}
	}
	return idx
}

func (idx *Index) add(fam, id, file string) {
	m := idx.modules[fam]
	if m == nil {
		m = make(map[string][]string)
		idx.modules[fam] = m
	}
	m[id] = append(m[id], file)
}

// ID returns the module identifier of an indexed file.
func (idx *Index) ID(file string) string {
	if id, ok := idx.ids[file]; ok {
		return id
	}
	return ModuleID(file, idx.goModule)
}

// GoModule returns the module path the index was built with.
func (idx *Index) GoModule() string { return idx.goModule }

func (idx *Index) lookup(fam, id string) []string {
	return idx.modules[fam][id]
}

// Resolve returns the project files a reference in file from points at.
// An empty result means the target lies outside the project.
func (idx *Index) Resolve(from string, ref Reference) []string {
	l := Detect(from)
	switch l {
	case Python:
		return idx.resolvePython(from, ref)
	case JavaScript, TypeScript:
		if !ref.Relative() {
			return nil
		}
		target := path.Clean(path.Join(path.Dir(from), ref.Module))
		if Detect(target) != Unknown {
			target = strings.TrimSuffix(target, path.Ext(target))
		}
		if files := idx.lookup("js", target); files != nil {
			return files
		}
		return idx.lookup("js", strings.TrimSuffix(target, "/index"))
	case Go:
		return idx.lookup("go", ref.Module)
	default:
		return nil
	}
}

func (idx *Index) resolvePython(from string, ref Reference) []string {
	module := ref.Module
	if ref.Level > 0 {
		pkg := strings.Split(idx.ID(from), ".")
		if !strings.HasSuffix(from, "/__init__.py") && from != "__init__.py" {
			pkg = pkg[:len(pkg)-1]
		}
		up := ref.Level - 1
		if up > len(pkg) {
			return nil
		}
		parts := append([]string(nil), pkg[:len(pkg)-up]...)
		if module != "" {
			parts = append(parts, module)
		}
		module = strings.Join(parts, ".")
	}

	var out []string
	seen := map[string]bool{}
	addAll := func(files []string, self bool) {
		for _, f := range files {
			if !seen[f] && (self || f != from) {
				seen[f] = true
				out = append(out, f)
			}
		}
	}

	// from pkg import mod binds submodules when they exist.
	for _, name := range ref.Names {
		if name == "*" {
			continue
		}
		candidate := name
		if module != "" {
			candidate = module + "." + name
		}
		addAll(idx.lookup("python", candidate), true)
	}
	if len(out) > 0 {
		return out
	}

	// Otherwise the longest indexed prefix of the module path. A module
	// only imports itself through an exact plain import.
	parts := strings.Split(module, ".")
	for n := len(parts); n > 0; n-- {
		if files := idx.lookup("python", strings.Join(parts[:n], ".")); files != nil {
			addAll(files, n == len(parts) && len(ref.Names) == 0)
			return out
		}
	}
	return nil
}
