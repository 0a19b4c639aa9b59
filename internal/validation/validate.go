// Package validation checks a generated file set for structural problems
// the compiler would reject, without invoking it.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/strategies"
	"github.com/moasq/swiftsmith/internal/swift"
)

// Kind names a structural problem.
type Kind string

const (
	DuplicatePath     Kind = "duplicate_path"
	DuplicateType     Kind = "duplicate_type"
	UnresolvedType    Kind = "unresolved_type"
	UnresolvedStorage Kind = "unresolved_storage_type"
	MissingImport     Kind = "missing_import"
	BraceImbalance    Kind = "brace_imbalance"
	MissingEntryPoint Kind = "missing_entry_point"
	NoSwiftFiles      Kind = "no_swift_files"
)

// Issue is one finding. Critical issues make a build certain to fail.
type Issue struct {
	Kind     Kind   `json:"kind"`
	Path     string `json:"path,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Detail   string `json:"detail"`
	Critical bool   `json:"critical"`
	delta    int
}

func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Kind, i.Detail, i.Path)
}

// Diagnostic renders the issue as a compiler-style error line, so it can be
// classified like real build output.
func (i Issue) Diagnostic() string {
	path := i.Path
	if path == "" || strings.Contains(path, ", ") {
		path = "Project.swift"
	}
	var msg string
	switch i.Kind {
	case BraceImbalance:
		if i.delta < 0 {
			msg = "extraneous '}' at top level"
		} else {
			msg = "expected '}' at end of declaration"
		}
	case UnresolvedStorage, UnresolvedType:
		msg = fmt.Sprintf("cannot find '%s' in scope", i.Symbol)
	case DuplicateType:
		msg = fmt.Sprintf("invalid redeclaration of '%s'", i.Symbol)
	default:
		msg = i.Detail
	}
	return fmt.Sprintf("%s:1:1: error: %s", path, msg)
}

// Report collects the issues found in one file set.
type Report struct {
	Issues []Issue `json:"issues"`
}

func (r Report) HasIssues() bool {
	return len(r.Issues) > 0
}

// Critical returns the critical issues.
func (r Report) Critical() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Critical {
			out = append(out, i)
		}
	}
	return out
}

// Valid reports whether no critical issue was found.
func (r Report) Valid() bool {
	return len(r.Critical()) == 0
}

// Score is 1.0 for a clean set, minus 0.25 per critical and 0.05 per other
// issue, floored at 0.
func (r Report) Score() float64 {
	score := 1.0
	for _, i := range r.Issues {
		if i.Critical {
			score -= 0.25
		} else {
			score -= 0.05
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

var (
	declPattern   = regexp.MustCompile(`\b(?:struct|class|enum|actor|protocol|typealias|associatedtype)\s+([A-Z]\w*)`)
	genericParams = regexp.MustCompile(`\b(?:struct|class|enum|actor|func|init)\s*\w*\s*<([^>]+)>`)
	typeRefs      = []*regexp.Regexp{
		regexp.MustCompile(`(?::|->)[ \t]*\[?[ \t]*([A-Z]\w*)`),
		regexp.MustCompile(`\b([A-Z]\w*)\.self\b`),
		regexp.MustCompile(`\b([A-Z]\w*)\.shared\b`),
	}
	mainAttr = regexp.MustCompile(`@main\b`)
)

// Validate runs every check over files. It never modifies its input.
func Validate(files []swift.File) Report {
	var r Report

	seenPath := map[string]int{}
	for _, f := range files {
		p := swift.NormalizePath(f.Path)
		seenPath[p]++
		if seenPath[p] == 2 {
			r.Issues = append(r.Issues, Issue{Kind: DuplicatePath, Path: p, Detail: "path appears more than once", Critical: true})
		}
	}

	var sources []swift.File
	for _, f := range files {
		if swift.IsSwift(f.Path) {
			sources = append(sources, f)
		}
	}
	if len(sources) == 0 {
		r.Issues = append(r.Issues, Issue{Kind: NoSwiftFiles, Detail: "file set contains no Swift sources", Critical: true})
		return r
	}

	decls := declarations(sources)
	for _, name := range sortedKeys(decls.topLevel) {
		if paths := decls.topLevel[name]; len(paths) > 1 {
			r.Issues = append(r.Issues, Issue{
				Kind:     DuplicateType,
				Path:     strings.Join(paths, ", "),
				Symbol:   name,
				Detail:   fmt.Sprintf("type %s is declared %d times", name, len(paths)),
				Critical: true,
			})
		}
	}

	hasMain := false
	for _, f := range sources {
		code := swift.CodeOnly(f.Content)
		if mainAttr.MatchString(code) {
			hasMain = true
		}
		if d := swift.BraceDelta(f.Content); d != 0 {
			r.Issues = append(r.Issues, Issue{Kind: BraceImbalance, Path: f.Path, Detail: fmt.Sprintf("brace delta %+d", d), Critical: true, delta: d})
		}
		if repair.InsertImports(f.Content) != f.Content {
			r.Issues = append(r.Issues, Issue{Kind: MissingImport, Path: f.Path, Detail: "framework identifiers used without import"})
		}
		for _, name := range unresolved(code, decls) {
			if strategies.HeavyweightTypes[name] {
				r.Issues = append(r.Issues, Issue{Kind: UnresolvedStorage, Path: f.Path, Symbol: name, Detail: fmt.Sprintf("storage type %s is never declared", name), Critical: true})
				continue
			}
			r.Issues = append(r.Issues, Issue{Kind: UnresolvedType, Path: f.Path, Symbol: name, Detail: fmt.Sprintf("type %s is never declared", name)})
		}
	}
	if !hasMain {
		r.Issues = append(r.Issues, Issue{Kind: MissingEntryPoint, Detail: "no @main App declaration", Critical: true})
	}
	return r
}

type declSet struct {
	all      map[string]bool
	topLevel map[string][]string
}

func declarations(files []swift.File) declSet {
	d := declSet{all: map[string]bool{}, topLevel: map[string][]string{}}
	for _, f := range files {
		code := swift.CodeOnly(f.Content)
		for _, m := range declPattern.FindAllStringSubmatchIndex(code, -1) {
			name := code[m[2]:m[3]]
			d.all[name] = true
			if depthAt(code, m[0]) == 0 {
				d.topLevel[name] = append(d.topLevel[name], f.Path)
			}
		}
		for _, m := range genericParams.FindAllStringSubmatch(code, -1) {
			for _, p := range strings.Split(m[1], ",") {
				name := strings.TrimSpace(strings.SplitN(p, ":", 2)[0])
				if name != "" {
					d.all[name] = true
				}
			}
		}
	}
	return d
}

// unresolved returns the referenced type names in code that are neither
// declared in the set nor provided by a system framework.
func unresolved(code string, decls declSet) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range typeRefs {
		for _, m := range re.FindAllStringSubmatch(code, -1) {
			name := m[1]
			if seen[name] || decls.all[name] || knownTypes[name] || len(name) == 1 {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	for name := range strategies.HeavyweightTypes {
		if seen[name] || decls.all[name] || knownTypes[name] {
			continue
		}
		if regexp.MustCompile(`\b` + name + `\b`).MatchString(code) {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func depthAt(code string, pos int) int {
	return strings.Count(code[:pos], "{") - strings.Count(code[:pos], "}")
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
