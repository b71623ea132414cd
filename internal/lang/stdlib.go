package lang

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed stdlib/*.txt
var stdlibFS embed.FS

var (
	pythonStdlib = loadList("stdlib/python.txt")
	nodeBuiltins = loadList("stdlib/node.txt")
)

func loadList(name string) map[string]bool {
	data, err := stdlibFS.ReadFile(name)
	if err != nil {
		panic("lang: missing embedded list " + name)
	}
	set := make(map[string]bool)
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = true
	}
	return set
}

// PackageRoot returns the distribution name an import belongs to: the
// top-level module for Python, the (scoped) package for npm and the full
// path for Go.
func PackageRoot(l Language, module string) string {
	switch l {
	case Python:
		root, _, _ := strings.Cut(module, ".")
		return root
	case JavaScript, TypeScript:
		module = strings.TrimPrefix(module, "node:")
		parts := strings.Split(module, "/")
		if strings.HasPrefix(module, "@") && len(parts) > 1 {
			return parts[0] + "/" + parts[1]
		}
		return parts[0]
	default:
		return module
	}
}

// IsStdlib reports whether module is provided by the language runtime.
func IsStdlib(l Language, module string) bool {
	switch l {
	case Python:
		return pythonStdlib[PackageRoot(l, module)]
	case JavaScript, TypeScript:
		if strings.HasPrefix(module, "node:") {
			return true
		}
		return nodeBuiltins[PackageRoot(l, module)]
	case Go:
		first, _, _ := strings.Cut(module, "/")
		return !strings.Contains(first, ".")
	default:
		return false
	}
}
