package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/lang"
)

func TestCheckClassification(t *testing.T) {
	r := NewRegistry(PyPI, []string{"requests", "numpy", "flask"}, nil)

	exact := r.Check("requests")
	assert.Equal(t, ClassValid, exact.Class)
	assert.Equal(t, 0, exact.Distance)

	one := r.Check("requets")
	assert.Equal(t, ClassSuspicious, one.Class)
	assert.Equal(t, 1, one.Distance)
	assert.Equal(t, "requests", one.Suggestion)

	two := r.Check("nunpyy")
	assert.Equal(t, ClassSuspicious, two.Class)
	assert.Equal(t, 2, two.Distance)
	assert.Equal(t, "numpy", two.Suggestion)

	far := r.Check("flaskcore")
	assert.Equal(t, ClassUnknown, far.Class)
	assert.Equal(t, 4, far.Distance)
	assert.Empty(t, far.Suggestion)
}

func TestCheckTieGoesToLexicographicallyFirst(t *testing.T) {
	r := NewRegistry(NPM, []string{"abe", "abd"}, nil)
	res := r.Check("abc")
	assert.Equal(t, ClassSuspicious, res.Class)
	assert.Equal(t, "abd", res.Suggestion)
}

func TestCheckAllowListOverridesDistance(t *testing.T) {
	r := NewRegistry(PyPI, []string{"requests"}, []string{"requestz"})
	res := r.Check("requestz")
	assert.Equal(t, ClassValid, res.Class)
	assert.Equal(t, 0, res.Distance)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "python-dateutil", Normalize(PyPI, "Python_DateUtil"))
	assert.Equal(t, "zope-interface", Normalize(PyPI, "zope.interface"))
	assert.Equal(t, "a-b", Normalize(PyPI, "a--_.b"))
	assert.Equal(t, "@types/node", Normalize(NPM, "@Types/Node"))

	r := NewRegistry(PyPI, []string{"python-dateutil"}, nil)
	assert.Equal(t, ClassValid, r.Check("Python_DateUtil").Class)
}

func TestEmptyRegistry(t *testing.T) {
	res := NewRegistry(Go, nil, nil).Check("github.com/x/y")
	assert.Equal(t, ClassUnknown, res.Class)
}

func TestDefaultRegistries(t *testing.T) {
	for _, eco := range Ecosystems {
		assert.Positive(t, DefaultRegistry(eco).Len(), eco)
	}
	assert.Equal(t, ClassValid, DefaultRegistry(PyPI).Check("requests").Class)
	assert.Equal(t, ClassValid, DefaultRegistry(NPM).Check("express").Class)
	assert.Equal(t, ClassValid, DefaultRegistry(Go).Check("github.com/spf13/cobra").Class)

	squat := DefaultRegistry(NPM).Check("expresss")
	assert.Equal(t, ClassSuspicious, squat.Class)
	assert.Equal(t, "express", squat.Suggestion)
}

func TestSetAppliesProjectSettings(t *testing.T) {
	s := NewSet(ir.RegistrySpec{Trusted: []string{"internal-lib"}, Allow: []string{"reqeusts"}})
	assert.Equal(t, ClassValid, s.Check(PyPI, "internal-lib").Class)
	assert.Equal(t, ClassValid, s.Check(PyPI, "reqeusts").Class)
	assert.Equal(t, ClassValid, s.Check("cargo", "anything").Class)
}

func TestWith(t *testing.T) {
	base := NewRegistry(PyPI, []string{"requests"}, []string{"x-internal"})
	ext := base.With([]string{"httpx"}, nil)
	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, ext.Len())
	assert.Equal(t, ClassValid, ext.Check("x-internal").Class)
}

func TestFinding(t *testing.T) {
	r := NewRegistry(PyPI, []string{"requests"}, nil)

	f, ok := Finding(r.Check("requets"), "app/api.py", 3, 1)
	require.True(t, ok)
	assert.Equal(t, RuleTyposquat, f.RuleID)
	assert.Equal(t, ir.SeverityHigh, f.Severity)
	assert.Equal(t, ir.CategoryTyposquat, f.Category)
	assert.Equal(t, `did you mean "requests"?`, f.Suggestion)
	assert.NotEmpty(t, f.ID)

	f, ok = Finding(r.Check("left-pad-xyz"), "app/api.py", 4, 1)
	require.True(t, ok)
	assert.Equal(t, RuleUnknown, f.RuleID)
	assert.Equal(t, ir.SeverityInfo, f.Severity)

	_, ok = Finding(r.Check("requests"), "app/api.py", 5, 1)
	assert.False(t, ok)
}

func TestThirdParty(t *testing.T) {
	cases := []struct {
		lang lang.Language
		ref  lang.Reference
		eco  Ecosystem
		pkg  string
		ok   bool
	}{
		{lang.Python, lang.Reference{Module: "requests.adapters"}, PyPI, "requests", true},
		{lang.Python, lang.Reference{Module: "yaml"}, PyPI, "pyyaml", true},
		{lang.Python, lang.Reference{Module: "os.path"}, "", "", false},
		{lang.Python, lang.Reference{Module: "models", Level: 1}, "", "", false},
		{lang.TypeScript, lang.Reference{Module: "@babel/core/lib/x"}, NPM, "@babel/core", true},
		{lang.JavaScript, lang.Reference{Module: "./util"}, "", "", false},
		{lang.JavaScript, lang.Reference{Module: "@/components/Button"}, "", "", false},
		{lang.JavaScript, lang.Reference{Module: "node:fs"}, "", "", false},
		{lang.Go, lang.Reference{Module: "github.com/spf13/cobra/doc"}, Go, "github.com/spf13/cobra", true},
		{lang.Go, lang.Reference{Module: "github.com/go-chi/chi/v5/middleware"}, Go, "github.com/go-chi/chi/v5", true},
		{lang.Go, lang.Reference{Module: "gopkg.in/yaml.v3"}, Go, "gopkg.in/yaml.v3", true},
		{lang.Go, lang.Reference{Module: "net/http"}, "", "", false},
	}
	for _, tc := range cases {
		eco, pkg, ok := ThirdParty(tc.lang, tc.ref)
		assert.Equal(t, tc.ok, ok, tc.ref.Module)
		assert.Equal(t, tc.eco, eco, tc.ref.Module)
		assert.Equal(t, tc.pkg, pkg, tc.ref.Module)
	}
}
