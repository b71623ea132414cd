package sast

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/lang"
)

// RulesetVersion identifies the built-in rule set in reports. Bump it
// whenever a rule's matching changes.
const RulesetVersion = "warden-sast/1"

var (
	python = []lang.Language{lang.Python}
	all    = []lang.Language{lang.Python, lang.JavaScript, lang.TypeScript, lang.Go}
)

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "SEC001",
			Name:       "sql-injection",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityHigh,
			Message:    "SQL statement built from run-time values",
			Suggestion: "Use parameterised queries and pass values as bind parameters",
			Languages:  all,
			Match:      literalRule(sqlLiteral),
		},
		{
			ID:         "SEC002",
			Name:       "command-injection",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityHigh,
			Message:    "Shell command built from run-time values",
			Suggestion: "Pass an argument list without a shell and validate inputs",
			Languages:  all,
			Match:      commandInjection(),
		},
		{
			ID:         "SEC003",
			Name:       "hardcoded-secret",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityHigh,
			Message:    "Hardcoded credential in source",
			Suggestion: "Load secrets from the environment or a secret manager",
			Languages:  all,
			Match:      literalRule(secretLiteral),
		},
		{
			ID:         "SEC004",
			Name:       "weak-hash",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityMedium,
			Message:    "MD5 or SHA-1 used for hashing",
			Suggestion: "Use SHA-256 or stronger, or a password hash such as bcrypt or argon2",
			Languages:  all,
			Match:      weakHash(),
		},
		{
			ID:         "SEC005",
			Name:       "unsafe-deserialization",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityHigh,
			Message:    "Deserialization that can execute arbitrary code",
			Suggestion: "Use JSON or a safe loader such as yaml.safe_load",
			Languages:  []lang.Language{lang.Python, lang.JavaScript, lang.TypeScript},
			Match:      unsafeDeserialization(),
		},
		{
			ID:         "SEC006",
			Name:       "path-traversal",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityHigh,
			Message:    "Filesystem path derived from user input",
			Suggestion: "Resolve the path and check it stays inside an allowed base directory",
			Languages:  all,
			Match:      pathTraversal(),
		},
		{
			ID:         "SEC007",
			Name:       "insecure-random",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityMedium,
			Message:    "Non-cryptographic random generator used for a security value",
			Suggestion: "Use the secrets module, crypto.randomBytes or crypto/rand",
			Languages:  all,
			Match:      insecureRandom(),
		},
		{
			ID:         "SEC008",
			Name:       "code-eval",
			Category:   ir.CategorySecurity,
			Severity:   ir.SeverityHigh,
			Message:    "Dynamic code evaluation of non-literal input",
			Suggestion: "Avoid eval; parse data with a dedicated parser such as ast.literal_eval or JSON.parse",
			Languages:  []lang.Language{lang.Python, lang.JavaScript, lang.TypeScript},
			Match:      codeEval(),
		},
		{
			ID:         "AP001",
			Name:       "bare-except",
			Category:   ir.CategoryAntipattern,
			Severity:   ir.SeverityLow,
			Message:    "Bare except clause swallows every exception",
			Suggestion: "Catch specific exception types",
			Languages:  python,
			Match:      lineRule(forLangs(`^\s*(except)\s*:`, lang.Python), nil),
		},
		{
			ID:         "AP002",
			Name:       "mutable-default",
			Category:   ir.CategoryAntipattern,
			Severity:   ir.SeverityMedium,
			Message:    "Mutable default argument is shared between calls",
			Suggestion: "Default to None and create the value inside the function",
			Languages:  python,
			Match: lineRule(forLangs(
				`^\s*(?:async\s+)?def\s+\w+\s*\(.*?\b(\w+)\s*(?::\s*[^=,()]+)?=\s*(?:\[|\{|(?:set|list|dict)\(\s*\))`,
				lang.Python), nil),
		},
		{
			ID:         "AP003",
			Name:       "god-class",
			Category:   ir.CategoryAntipattern,
			Severity:   ir.SeverityMedium,
			Message:    "Class has more than 20 methods",
			Suggestion: "Split responsibilities into smaller classes",
			Languages:  python,
			Match:      godClass(GodClassMethods),
		},
		{
			ID:         "AP004",
			Name:       "wildcard-import",
			Category:   ir.CategoryAntipattern,
			Severity:   ir.SeverityLow,
			Message:    "Wildcard import hides where names come from",
			Suggestion: "Import the names you use explicitly",
			Languages:  python,
			Match:      lineRule(forLangs(`^\s*(from)\s+[\w.]+\s+import\s+\*`, lang.Python), nil),
		},
	}
}

// IDs returns the IDs of rules.
func IDs(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

var (
	sqlShape   = regexp.MustCompile(`(?is)\b(?:select\b.+\bfrom|insert\s+into|update\s+\S+\s+set|delete\s+from|drop\s+(?:table|database)|(?:create|alter)\s+table)\b`)
	formatVerb = regexp.MustCompile(`%[-+# 0-9.]*[svdq]`)
)

func sqlLiteral(src *lang.Source, ln lang.Line, lit lang.Literal) bool {
	if !sqlShape.MatchString(lit.Value) {
		return false
	}
	if composed(src, ln, lit) {
		return true
	}
	if src.Lang == lang.Go && formatVerb.MatchString(lit.Value) {
		before := string([]rune(ln.Masked)[:lit.Column-1])
		return strings.Contains(before, "Sprintf(")
	}
	return false
}

var (
	pyShellSink = regexp.MustCompile(`\b((os\.(?:system|popen)|commands\.getoutput|subprocess\.(?:call|run|Popen|check_output|check_call|getoutput|getstatusoutput)))\s*\(`)
	jsShellSink = regexp.MustCompile(`(?:^|[^.\w$])((?:child_process\.)?(exec|execSync|spawn|spawnSync|execFile))\s*\(`)
	goShellSink = regexp.MustCompile(`\b(exec\.Command(?:Context)?)\s*\(`)
	shellTrue   = regexp.MustCompile(`\bshell\s*[=:]\s*(?:True|true)\b`)
	goShellArgs = regexp.MustCompile(`^\s*(?:\w+\s*,\s*)?"(?:/bin/|/usr/bin/)?(?:ba|z)?sh"\s*,\s*"-c"\s*,\s*`)
)

func commandInjection() Matcher {
	return anyOf(
		lineRule(map[lang.Language]*regexp.Regexp{lang.Python: pyShellSink}, func(src *lang.Source, ln lang.Line, m []int) bool {
			if shellTrue.MatchString(ln.Masked) {
				return true
			}
			switch group(ln.Masked, m, 2) {
			case "os.system", "os.popen", "commands.getoutput", "subprocess.getoutput", "subprocess.getstatusoutput":
				return dynamicArg(src, ln, m[1])
			}
			return false
		}),
		lineRule(map[lang.Language]*regexp.Regexp{lang.JavaScript: jsShellSink, lang.TypeScript: jsShellSink}, func(src *lang.Source, ln lang.Line, m []int) bool {
			switch group(ln.Masked, m, 2) {
			case "exec", "execSync":
				return dynamicArg(src, ln, m[1])
			default:
				return shellTrue.MatchString(ln.Masked) && dynamicArg(src, ln, m[1])
			}
		}),
		lineRule(map[lang.Language]*regexp.Regexp{lang.Go: goShellSink}, func(src *lang.Source, ln lang.Line, m []int) bool {
			first := firstArg(ln, m[1])
			if first < 0 {
				return false
			}
			code := []rune(ln.Code)
			rest := string(code[first:])
			// exec.CommandContext takes the context first.
			if group(ln.Masked, m, 1) == "exec.CommandContext" {
				if k := strings.Index(rest, ","); k >= 0 {
					first += utf8.RuneCountInString(rest[:k+1])
					for first < len(code) && code[first] == ' ' {
						first++
					}
					rest = string(code[first:])
				}
			}
			if dynamicAt(src, ln, first) {
				return true
			}
			if loc := goShellArgs.FindStringIndex(rest); loc != nil {
				return dynamicAt(src, ln, first+utf8.RuneCountInString(rest[:loc[1]]))
			}
			return false
		}),
	)
}

var (
	secretShapes = []*regexp.Regexp{
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		regexp.MustCompile(`\bsk-(?:live-|test-|proj-)?[A-Za-z0-9]{20,}`),
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36}\b`),
		regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}`),
		regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`),
		regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	}
	secretName  = regexp.MustCompile(`(?i)(?:password|passwd|pwd|secret|api_?key|apikey|access_?key|auth_?token|token|private_?key)\w*["'\]]?\s*(?::=|==|=|:)\s*$`)
	placeholder = regexp.MustCompile(`(?i)^(?:changeme|change_me|password|secret|example|test|dummy|x+|\*+|<[^>]*>|\$\{[^}]*\}|\{\{.*\}\}|%\(\w+\)s|your[-_ ].*)$`)
)

func secretLiteral(_ *lang.Source, ln lang.Line, lit lang.Literal) bool {
	if lit.Interpolated {
		return false
	}
	for _, re := range secretShapes {
		if re.MatchString(lit.Value) {
			return true
		}
	}
	v := lit.Value
	if len(v) < 8 || strings.ContainsAny(v, " \t\n") || placeholder.MatchString(v) {
		return false
	}
	code := []rune(ln.Code)
	before := string(code[:min(lit.Column-1, len(code))])
	if secretName.MatchString(before) {
		return true
	}
	return highEntropy(v)
}

var (
	pyHashSink = regexp.MustCompile(`\b((hashlib\.(?:md5|sha1|new)))\s*\(`)
	jsHashSink = regexp.MustCompile(`\b((?:crypto\.)?(createHash))\s*\(`)
	goHashSink = regexp.MustCompile(`\b((md5|sha1)\.(?:New|Sum))\s*\(`)
	notForSec  = regexp.MustCompile(`\busedforsecurity\s*=\s*False\b`)
)

func weakHash() Matcher {
	weakArg := func(src *lang.Source, ln lang.Line, open int) bool {
		lit, ok := argLiteral(src, ln, open)
		if !ok {
			return false
		}
		switch strings.ToLower(lit.Value) {
		case "md5", "sha1", "sha-1":
			return true
		}
		return false
	}
	return lineRule(map[lang.Language]*regexp.Regexp{
		lang.Python:     pyHashSink,
		lang.JavaScript: jsHashSink,
		lang.TypeScript: jsHashSink,
		lang.Go:         goHashSink,
	}, func(src *lang.Source, ln lang.Line, m []int) bool {
		if notForSec.MatchString(ln.Masked) {
			return false
		}
		switch group(ln.Masked, m, 2) {
		case "hashlib.new", "createHash":
			return weakArg(src, ln, m[1])
		}
		return true
	})
}

var (
	pyDeserialize = regexp.MustCompile(`\b((pickle\.(?:loads?|Unpickler)|cPickle\.loads?|_pickle\.loads?|dill\.loads?|marshal\.loads?|shelve\.open|jsonpickle\.decode|yaml\.(?:load|load_all|unsafe_load|full_load)))\s*\(`)
	jsDeserialize = regexp.MustCompile(`\b((?:\w+\.)?unserialize)\s*\(`)
	safeLoader    = regexp.MustCompile(`\bLoader\s*=\s*(?:yaml\.)?C?SafeLoader\b`)
)

func unsafeDeserialization() Matcher {
	return lineRule(map[lang.Language]*regexp.Regexp{
		lang.Python:     pyDeserialize,
		lang.JavaScript: jsDeserialize,
		lang.TypeScript: jsDeserialize,
	}, func(_ *lang.Source, ln lang.Line, m []int) bool {
		switch group(ln.Masked, m, 2) {
		case "yaml.load", "yaml.load_all":
			return !safeLoader.MatchString(ln.Masked)
		}
		return true
	})
}

var (
	pathSinks = map[lang.Language]*regexp.Regexp{
		lang.Python:     regexp.MustCompile(`(?:^|[^.\w])((?:open|os\.(?:remove|unlink|rmdir|listdir|makedirs)|os\.path\.join|shutil\.\w+|send_file|send_from_directory|Path))\s*\(`),
		lang.JavaScript: jsPathSink,
		lang.TypeScript: jsPathSink,
		lang.Go:         regexp.MustCompile(`\b((?:os\.(?:Open|OpenFile|ReadFile|WriteFile|Create|Remove|RemoveAll|ReadDir)|filepath\.Join|http\.ServeFile))\s*\(`),
	}
	jsPathSink = regexp.MustCompile(`\b((?:fs\.\w+|fsp\.\w+|res\.sendFile|res\.download|path\.(?:join|resolve)))\s*\(`)

	taintSources = map[lang.Language]*regexp.Regexp{
		lang.Python:     regexp.MustCompile(`\b(?:request\.(?:args|form|values|files|GET|POST|params|query_params|path_params)|sys\.argv|input\s*\()`),
		lang.JavaScript: jsTaint,
		lang.TypeScript: jsTaint,
		lang.Go:         regexp.MustCompile(`\b(?:r\.URL\.Query\(\)|r\.FormValue\(|r\.PostFormValue\(|r\.URL\.Path|r\.PathValue\(|os\.Args|mux\.Vars\()`),
	}
	jsTaint = regexp.MustCompile(`\b(?:req\.(?:params|query|body)|process\.argv)\b`)
)

func pathTraversal() Matcher {
	return func(src *lang.Source) []Hit {
		taint := taintSources[src.Lang]
		return lineRule(pathSinks, func(src *lang.Source, ln lang.Line, m []int) bool {
			if taint != nil && taint.MatchString(ln.Masked) {
				return true
			}
			return composedArg(src, ln, m[1])
		})(src)
	}
}

var (
	randomCalls = map[lang.Language]*regexp.Regexp{
		lang.Python:     regexp.MustCompile(`\b(random\.(?:random|randint|choice|choices|randrange|getrandbits|sample|uniform))\s*\(`),
		lang.JavaScript: jsRandom,
		lang.TypeScript: jsRandom,
		lang.Go:         regexp.MustCompile(`\b(rand\.(?:Int|Intn|Int31|Int31n|Int63|Int63n|IntN|Uint32|Uint64|Float64|N))\s*\(`),
	}
	jsRandom      = regexp.MustCompile(`\b(Math\.random)\s*\(`)
	securityValue = regexp.MustCompile(`(?i)(?:token|secret|passw|nonce|otp|salt|api_?key|session|csrf|reset_?code)`)
)

func insecureRandom() Matcher {
	return lineRule(randomCalls, func(_ *lang.Source, ln lang.Line, _ []int) bool {
		return securityValue.MatchString(ln.Masked)
	})
}

var (
	pyEval = regexp.MustCompile(`(?:^|[^.\w])((eval|exec))\s*\(`)
	jsEval = regexp.MustCompile(`(?:^|[^.\w$])((eval|new\s+Function))\s*\(`)
)

func codeEval() Matcher {
	return lineRule(map[lang.Language]*regexp.Regexp{
		lang.Python:     pyEval,
		lang.JavaScript: jsEval,
		lang.TypeScript: jsEval,
	}, func(src *lang.Source, ln lang.Line, m []int) bool {
		return dynamicArg(src, ln, m[1])
	})
}
