package scan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/moby/patternmatcher"
	"go.uber.org/atomic"

	"github.com/roach88/warden/internal/deps"
	"github.com/roach88/warden/internal/graph"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/lang"
	"github.com/roach88/warden/internal/layers"
	"github.com/roach88/warden/internal/metrics"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/sast"
)

// Check selects the analyses a scan runs.
type Check uint8

const (
	CheckPatterns Check = 1 << iota
	CheckImports
	CheckLayerRules
	CheckCycles

	CheckAll = CheckPatterns | CheckImports | CheckLayerRules | CheckCycles
)

// DefaultMaxFileSize is the largest file analysed when Config leaves it unset.
const DefaultMaxFileSize = 1 << 20

// Tool identifies the producer in reports.
const Tool = "warden"

// Config configures a Scanner. Zero values select defaults.
type Config struct {
	// Rules supplies layer, registry and rule settings. Nil means an empty
	// store: no layers, embedded registries, every built-in rule.
	Rules *rules.Store

	// Checks selects analyses. Zero means CheckAll.
	Checks Check

	Workers     int
	MaxFileSize int64

	// SkipDirs are directory names skipped in addition to DefaultSkipDirs.
	SkipDirs []string

	// Exclude holds path patterns, relative to the scan root, of files and
	// directories to leave out.
	Exclude []string

	// MaxCycles caps cycle enumeration per strongly connected component.
	MaxCycles int

	Logger  *slog.Logger
	Metrics *metrics.Collectors
}

// Scanner runs project scans. Its configuration is immutable after New
// and it is safe for concurrent use.
type Scanner struct {
	checks      Check
	workers     int
	maxFileSize int64
	maxCycles   int
	skip        map[string]bool
	exclude     *patternmatcher.PatternMatcher
	analysed    *atomic.Int64

	patterns *sast.Scanner
	registry deps.Set
	enforcer *layers.Enforcer
	settings ir.RuleSettings

	logger  *slog.Logger
	metrics *metrics.Collectors
}

// New validates cfg and builds a Scanner.
func New(cfg Config) (*Scanner, error) {
	store := cfg.Rules
	if store == nil {
		var err error
		if store, err = rules.New(); err != nil {
			return nil, err
		}
	}

	enforcer, err := layers.NewEnforcer(store.Layers())
	if err != nil {
		return nil, fmt.Errorf("layer rules: %w", err)
	}
	var exclude *patternmatcher.PatternMatcher
	if len(cfg.Exclude) > 0 {
		if exclude, err = patternmatcher.New(cfg.Exclude); err != nil {
			return nil, fmt.Errorf("exclude patterns: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Scanner{
		checks:      cmp.Or(cfg.Checks, CheckAll),
		workers:     cfg.Workers,
		maxFileSize: cmp.Or(cfg.MaxFileSize, DefaultMaxFileSize),
		maxCycles:   cmp.Or(cfg.MaxCycles, graph.DefaultMaxCyclesPerComponent),
		skip:        make(map[string]bool),
		exclude:     exclude,
		analysed:    atomic.NewInt64(0),
		patterns:    sast.NewScanner(store.PatternRules(), logger),
		registry:    deps.NewSet(store.Registry()),
		enforcer:    enforcer,
		settings:    store.RuleSettings(),
		logger:      logger,
		metrics:     cfg.Metrics,
	}
	if s.workers < 1 {
		s.workers = 4
	}
	for _, d := range DefaultSkipDirs {
		s.skip[d] = true
	}
	for _, d := range cfg.SkipDirs {
		s.skip[d] = true
	}
	return s, nil
}

// site is a source location.
type site struct {
	file      string
	line, col int
}

type edgeSite struct {
	from, to string
	at       site
}

type packageRef struct {
	eco  deps.Ecosystem
	name string
	at   site
}

// fileResult is everything one worker learned about one file.
type fileResult struct {
	summary  ir.FileSummary
	findings []ir.Finding
	edges    []edgeSite
	packages []packageRef
	err      *ir.FileError
	graphErr *ir.FileError
}

// project is the state of one scan after the worker pool drains.
type project struct {
	root      string
	tree      *tree
	index     *lang.Index
	graph     *graph.Graph
	results   []fileResult
	manifests []ir.Finding
	declared  map[string]bool
	errors    []ir.FileError
}

// ScanProject scans the tree under root and returns the aggregated report.
// Findings are data: a report with findings is a successful scan. The
// error is non-nil only when root cannot be walked or ctx is cancelled.
func (s *Scanner) ScanProject(ctx context.Context, root string) (*ir.Report, error) {
	start := time.Now()
	p, err := s.run(ctx, root)
	if err != nil {
		s.metrics.ObserveScanError()
		return nil, err
	}
	report, err := s.assemble(p)
	if err != nil {
		s.metrics.ObserveScanError()
		return nil, err
	}
	elapsed := time.Since(start)
	report.Stats.DurationMS = elapsed.Milliseconds()
	s.metrics.ObserveReport(report, elapsed)

	s.logger.Info("scan complete",
		"root", root,
		"files", report.Stats.FilesScanned,
		"failed", report.Stats.FilesFailed,
		"findings", report.Stats.Findings,
		"cycles", report.Stats.Cycles,
		"duration", elapsed)
	return report, nil
}

// Analysed returns the number of files analysed by every scan this
// Scanner has run, watch rescans included.
func (s *Scanner) Analysed() int64 {
	return s.analysed.Load()
}

func (s *Scanner) run(ctx context.Context, root string) (*project, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s: not a directory", root)
	}

	t, err := walk(ctx, root, s.skip, s.exclude)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	goModule := ""
	if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
		goModule = deps.ModulePath(data)
	}

	p := &project{
		root:     root,
		tree:     t,
		index:    lang.NewIndex(t.sources, goModule),
		graph:    graph.New(),
		results:  make([]fileResult, len(t.sources)),
		declared: make(map[string]bool),
	}
	for _, f := range t.sources {
		if id := p.index.ID(f); id != "" {
			p.graph.AddNode(id)
		}
	}
	s.logger.Debug("walked project", "root", root, "sources", len(t.sources), "manifests", len(t.manifests))

	done := atomic.NewInt64(0)
	pool := pond.NewPool(s.workers)
	group := pool.NewGroup()
	for i, rel := range t.sources {
		group.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			p.results[i] = s.analyzeFile(p, rel)
			done.Inc()
			s.analysed.Inc()
		})
	}
	waitErr := group.Wait()
	pool.StopAndWait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled after %d of %d files: %w", done.Load(), len(t.sources), err)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("analyse files: %w", waitErr)
	}

	if s.checks&CheckImports != 0 {
		s.checkManifests(p)
	}
	return p, nil
}

func (s *Scanner) analyzeFile(p *project, rel string) fileResult {
	l := lang.Detect(rel)
	res := fileResult{summary: ir.FileSummary{Path: rel, Language: l.String()}}

	text, ferr := s.readText(filepath.Join(p.root, filepath.FromSlash(rel)), rel)
	if ferr != nil {
		s.logger.Warn("file skipped", "file", rel, "kind", ferr.Kind, "error", ferr.Message)
		s.metrics.ObserveFileError(ferr.Kind)
		res.err = ferr
		return res
	}
	s.metrics.ObserveFile()
	res.summary.Digest = ir.ContentDigest(text)

	src := lang.Lex(rel, l, text)
	if src.Degraded {
		s.logger.Debug("lexer degraded, matching raw lines", "file", rel)
	}
	if s.checks&CheckPatterns != 0 {
		res.findings = append(res.findings, s.patterns.ScanSource(src)...)
	}
	if s.checks&(CheckImports|CheckLayerRules|CheckCycles) == 0 {
		return res
	}

	from := p.index.ID(rel)
	var targets []layers.Target
	for _, ref := range lang.Imports(src) {
		at := site{file: rel, line: ref.Line, col: ref.Column}
		if files := p.index.Resolve(rel, ref); len(files) > 0 {
			targets = append(targets, layers.Target{Ref: ref, Files: files})
			for _, f := range files {
				to := p.index.ID(f)
				if err := p.graph.AddEdge(from, to); err != nil {
					if res.graphErr == nil {
						res.graphErr = &ir.FileError{File: rel, Kind: ir.FileErrorGraph, Message: err.Error()}
					}
					continue
				}
				res.edges = append(res.edges, edgeSite{from: from, to: to, at: at})
			}
			continue
		}
		if s.checks&CheckImports == 0 || ownModule(p.index.GoModule(), l, ref) {
			continue
		}
		if eco, pkg, ok := deps.ThirdParty(l, ref); ok {
			res.packages = append(res.packages, packageRef{eco: eco, name: pkg, at: at})
		}
	}

	if s.checks&CheckLayerRules != 0 && !s.enforcer.Empty() {
		if layer, ok := s.enforcer.Layer(rel); ok {
			res.summary.Layer = layer
			res.findings = append(res.findings, s.enforcer.Check(rel, layer, targets)...)
		} else {
			res.findings = append(res.findings, layers.Unclassified(rel))
		}
	}
	return res
}

// ownModule reports whether a Go import points inside the scanned module
// without resolving to an indexed file (an excluded package, say).
func ownModule(goModule string, l lang.Language, ref lang.Reference) bool {
	if l != lang.Go || goModule == "" {
		return false
	}
	return ref.Module == goModule || strings.HasPrefix(ref.Module, goModule+"/")
}

func (s *Scanner) readText(path, rel string) (string, *ir.FileError) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &ir.FileError{File: rel, Kind: ir.FileErrorRead, Message: pathErrorText(err)}
	}
	if info.Size() > s.maxFileSize {
		return "", &ir.FileError{
			File:    rel,
			Kind:    ir.FileErrorTooLarge,
			Message: fmt.Sprintf("%d bytes exceeds the %d byte limit", info.Size(), s.maxFileSize),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ir.FileError{File: rel, Kind: ir.FileErrorRead, Message: pathErrorText(err)}
	}
	text, err := decode(data)
	if err != nil {
		return "", &ir.FileError{File: rel, Kind: ir.FileErrorDecode, Message: err.Error()}
	}
	return text, nil
}

// pathErrorText drops the absolute path from filesystem errors so
// messages do not depend on where the tree is checked out.
func pathErrorText(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Op + ": " + pe.Err.Error()
	}
	return err.Error()
}

func (s *Scanner) checkManifests(p *project) {
	for _, rel := range p.tree.manifests {
		data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(rel)))
		if err != nil {
			p.errors = append(p.errors, ir.FileError{File: rel, Kind: ir.FileErrorRead, Message: pathErrorText(err)})
			continue
		}
		declared, err := deps.ParseManifest(rel, data)
		if err != nil {
			s.logger.Warn("manifest skipped", "file", rel, "error", err)
			p.errors = append(p.errors, ir.FileError{File: rel, Kind: ir.FileErrorManifest, Message: err.Error()})
			continue
		}
		for _, d := range declared {
			p.declared[packageKey(d.Ecosystem, d.Name)] = true
			if f, ok := deps.Finding(s.registry.Check(d.Ecosystem, d.Name), rel, d.Line, 0); ok {
				p.manifests = append(p.manifests, f)
			}
		}
	}
}

func packageKey(eco deps.Ecosystem, name string) string {
	return string(eco) + ":" + deps.Normalize(eco, name)
}

// assemble merges per-file results in file order, runs the whole-project
// checks, and builds the report.
func (s *Scanner) assemble(p *project) (*ir.Report, error) {
	var raw []ir.Finding
	raw = append(raw, p.manifests...)

	files := []ir.FileSummary{}
	fileErrors := slices.Clone(p.errors)
	edgeAt := make(map[[2]string]site)
	reported := make(map[string]bool)
	failed := 0

	for _, res := range p.results {
		if res.err != nil {
			fileErrors = append(fileErrors, *res.err)
			failed++
			continue
		}
		if res.summary.Path == "" {
			continue
		}
		if res.graphErr != nil {
			fileErrors = append(fileErrors, *res.graphErr)
		}
		files = append(files, res.summary)
		raw = append(raw, res.findings...)

		for _, e := range res.edges {
			key := [2]string{e.from, e.to}
			if _, ok := edgeAt[key]; !ok {
				edgeAt[key] = e.at
			}
		}
		for _, ref := range res.packages {
			key := packageKey(ref.eco, ref.name)
			if p.declared[key] || reported[key] {
				continue
			}
			reported[key] = true
			if f, ok := deps.Finding(s.registry.Check(ref.eco, ref.name), ref.at.file, ref.at.line, ref.at.col); ok {
				raw = append(raw, f)
			}
		}
	}

	cycles := graph.Result{}
	if s.checks&CheckCycles != 0 {
		cycles = graph.DetectCyclesWith(p.graph, graph.Options{MaxCyclesPerComponent: s.maxCycles})
		if cycles.Truncated {
			s.logger.Warn("cycle enumeration truncated", "components", cycles.Components, "limit", s.maxCycles)
		}
		for _, c := range cycles.Cycles {
			at, ok := edgeAt[[2]string{c.Path[0], c.Path[1]}]
			if !ok {
				at = site{file: c.Path[0], line: 1}
			}
			raw = append(raw, graph.Finding(c, at.file, at.line, at.col))
		}
	}

	findings := []ir.Finding{}
	for _, f := range raw {
		if f, ok := s.settings.Apply(f); ok {
			findings = append(findings, f)
		}
	}
	slices.SortStableFunc(findings, ir.CompareFindings)

	perFile := make(map[string]int)
	stats := ir.NewStats()
	for _, f := range findings {
		stats.Count(f)
		perFile[f.File]++
	}
	for i := range files {
		files[i].Findings = perFile[files[i].Path]
	}
	slices.SortStableFunc(fileErrors, func(a, b ir.FileError) int {
		return cmp.Or(strings.Compare(a.File, b.File), strings.Compare(a.Kind, b.Kind))
	})

	cycleList := cycles.Cycles
	if cycleList == nil {
		cycleList = []ir.Cycle{}
	}
	stats.FilesScanned = len(files)
	stats.FilesFailed = failed
	stats.Cycles = len(cycleList)

	fingerprint, err := ir.Fingerprint(findings, cycleList)
	if err != nil {
		return nil, err
	}
	return &ir.Report{
		Version:     ir.ReportVersion,
		Tool:        Tool,
		Root:        filepath.ToSlash(filepath.Clean(p.root)),
		Ruleset:     sast.RulesetVersion,
		Fingerprint: fingerprint,
		Files:       files,
		Findings:    findings,
		Cycles:      cycleList,
		Truncated:   cycles.Truncated,
		Errors:      fileErrors,
		Stats:       stats,
	}, nil
}
