// Package strategies holds independent targeted repairs driven by
// classified compiler errors. A strategy never mutates its input and
// returns the original files with Success=false when it cannot help.
package strategies

import (
	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/swift"
)

// Strategy repairs one class of compiler error.
type Strategy interface {
	Name() string
	// Triggers lists the categories that make this strategy applicable.
	Triggers() []diagnostics.Category
	Attempt(errs []diagnostics.ErrorRecord, files []swift.File, cat diagnostics.Categorized) swift.RepairResult
}

// Default returns the built-in strategies in priority order.
func Default() []Strategy {
	return []Strategy{
		Conformance{},
		DependencyStrip{},
		StringLiteral{},
		APIVersion{},
		DeprecatedRewrite{},
		BraceRebalance{},
	}
}

// Applies reports whether any of s's trigger categories is present.
func Applies(s Strategy, cat diagnostics.Categorized) bool {
	for _, c := range s.Triggers() {
		if cat.Has(c) {
			return true
		}
	}
	return false
}

// targetFiles returns the indexes of files named by recs. Records without a
// file name contribute nothing.
func targetFiles(files []swift.File, recs []diagnostics.ErrorRecord) []int {
	seen := map[int]bool{}
	var out []int
	for _, r := range recs {
		if r.File == "" {
			continue
		}
		i := swift.Find(files, r.File)
		if i < 0 {
			i = swift.FindByBase(files, r.File)
		}
		if i >= 0 && !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

// result builds the return value, falling back to the untouched input when
// nothing changed.
func result(original, patched []swift.File, fixes []string, msg string) swift.RepairResult {
	if len(fixes) == 0 || swift.Equal(original, patched) {
		return swift.Failed(original, msg)
	}
	return swift.RepairResult{Success: true, Files: patched, FixesApplied: fixes, Message: msg}
}
