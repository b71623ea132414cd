package deps

import (
	"strings"

	"github.com/roach88/warden/internal/lang"
)

// pythonDistributions maps import names whose distribution is published
// under a different name.
var pythonDistributions = map[string]string{
	"bs4":       "beautifulsoup4",
	"cv2":       "opencv-python",
	"dateutil":  "python-dateutil",
	"dotenv":    "python-dotenv",
	"google":    "google-auth",
	"jwt":       "pyjwt",
	"multipart": "python-multipart",
	"OpenSSL":   "pyopenssl",
	"PIL":       "pillow",
	"sklearn":   "scikit-learn",
	"yaml":      "pyyaml",
}

// EcosystemOf returns the package namespace of a language.
func EcosystemOf(l lang.Language) (Ecosystem, bool) {
	switch l {
	case lang.Python:
		return PyPI, true
	case lang.JavaScript, lang.TypeScript:
		return NPM, true
	case lang.Go:
		return Go, true
	default:
		return "", false
	}
}

// ThirdParty maps an import reference to the package that provides it.
// ok is false for relative imports and standard-library modules.
func ThirdParty(l lang.Language, ref lang.Reference) (eco Ecosystem, pkg string, ok bool) {
	eco, ok = EcosystemOf(l)
	if !ok || ref.Relative() || ref.Module == "" || lang.IsStdlib(l, ref.Module) {
		return "", "", false
	}
	root := lang.PackageRoot(l, ref.Module)
	switch eco {
	case PyPI:
		if dist, found := pythonDistributions[root]; found {
			root = dist
		}
	case NPM:
		// Path aliases such as "@/components" or "~/lib" are local.
		if strings.HasPrefix(root, "@/") || strings.HasPrefix(root, "~") || root == "@" {
			return "", "", false
		}
	case Go:
		root = goModuleRoot(root)
	}
	return eco, root, true
}

// goModuleRoot trims an import path to its likely module path for the
// common hosting layouts.
func goModuleRoot(path string) string {
	parts := strings.Split(path, "/")
	n := len(parts)
	switch parts[0] {
	case "github.com", "gitlab.com", "bitbucket.org", "golang.org":
		n = 3
	case "gopkg.in":
		n = 2
	}
	if n > len(parts) {
		n = len(parts)
	}
	// Major version suffixes belong to the module path.
	if n < len(parts) && isMajorVersion(parts[n]) {
		n++
	}
	return strings.Join(parts[:n], "/")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
