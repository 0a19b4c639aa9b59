package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/strategies"
	"github.com/moasq/swiftsmith/internal/swift"
)

var viewDecl = regexp.MustCompile(`\bstruct\s+([A-Z]\w*)\s*:\s*(?:[\w, ]*\b)?View\b`)

// Fix applies the local repairs for the issues Validate reports: duplicate
// paths collapse to the last content, files that only redeclare existing
// types are dropped, the syntax engine runs, undeclared storage types are
// stripped and a missing @main App is synthesized around the root view.
// The input is never modified.
func Fix(files []swift.File, engine *repair.Engine) ([]swift.File, []string) {
	var fixes []string

	out := swift.Merge(nil, files)
	if len(out) != len(files) {
		fixes = append(fixes, fmt.Sprintf("removed %d duplicate path(s)", len(files)-len(out)))
	}

	out, dropped := dropRedeclaringFiles(out)
	for _, p := range dropped {
		fixes = append(fixes, fmt.Sprintf("%s: removed file redeclaring existing types", p))
	}

	for i := range out {
		repaired, applied := engine.RepairFile(out[i])
		out[i] = repaired
		fixes = append(fixes, applied...)
	}

	if storage := unresolvedStorage(out); len(storage) > 0 {
		var raw []string
		for _, name := range storage {
			raw = append(raw, fmt.Sprintf("error: cannot find '%s' in scope", name))
		}
		res := strategies.DependencyStrip{}.Attempt(nil, out, diagnostics.Classify(raw))
		if res.Success {
			out = res.Files
			fixes = append(fixes, res.FixesApplied...)
		}
	}

	if f, ok := entryPointFor(out); ok {
		out = append(out, f)
		fixes = append(fixes, fmt.Sprintf("%s: added @main App", f.Path))
	}
	return out, fixes
}

// dropRedeclaringFiles removes, in order, each Swift file whose top-level
// declarations were all declared by an earlier file.
func dropRedeclaringFiles(files []swift.File) ([]swift.File, []string) {
	declared := map[string]bool{}
	var out []swift.File
	var dropped []string
	for _, f := range files {
		if !swift.IsSwift(f.Path) {
			out = append(out, f)
			continue
		}
		names := declarations([]swift.File{f}).topLevel
		redundant := len(names) > 0 && !mainAttr.MatchString(swift.CodeOnly(f.Content))
		for name := range names {
			if !declared[name] {
				redundant = false
			}
		}
		if redundant {
			dropped = append(dropped, f.Path)
			continue
		}
		for name := range names {
			declared[name] = true
		}
		out = append(out, f)
	}
	return out, dropped
}

func unresolvedStorage(files []swift.File) []string {
	var out []string
	seen := map[string]bool{}
	for _, issue := range Validate(files).Issues {
		if issue.Kind != UnresolvedStorage {
			continue
		}
		name := strings.Fields(strings.TrimPrefix(issue.Detail, "storage type "))[0]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// entryPointFor returns an App file wrapping the root view when no file
// declares @main. ContentView is preferred as the root.
func entryPointFor(files []swift.File) (swift.File, bool) {
	var views []string
	for _, f := range files {
		if !swift.IsSwift(f.Path) {
			continue
		}
		code := swift.CodeOnly(f.Content)
		if mainAttr.MatchString(code) {
			return swift.File{}, false
		}
		for _, m := range viewDecl.FindAllStringSubmatch(code, -1) {
			views = append(views, m[1])
		}
	}
	if len(views) == 0 {
		return swift.File{}, false
	}
	root := views[0]
	for _, v := range views {
		if v == "ContentView" {
			root = v
		}
	}
	if swift.FindByBase(files, "GeneratedApp.swift") >= 0 {
		return swift.File{}, false
	}
	content := fmt.Sprintf(`import SwiftUI

@main
struct GeneratedApp: App {
    var body: some Scene {
        WindowGroup {
            %s()
        }
    }
}
`, root)
	return swift.File{Path: "GeneratedApp.swift", Content: content}, true
}
