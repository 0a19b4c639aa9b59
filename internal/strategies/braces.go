package strategies

import (
	"fmt"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
)

// BraceRebalance runs the brace balancer on the files named by
// unbalanced-brace errors only.
type BraceRebalance struct{}

func (BraceRebalance) Name() string { return "brace-rebalance" }

func (BraceRebalance) Triggers() []diagnostics.Category {
	return []diagnostics.Category{diagnostics.UnbalancedBraces}
}

func (BraceRebalance) Attempt(_ []diagnostics.ErrorRecord, files []swift.File, cat diagnostics.Categorized) swift.RepairResult {
	idx := targetFiles(files, cat[diagnostics.UnbalancedBraces])
	if len(idx) == 0 {
		return swift.Failed(files, "no file named in brace errors")
	}
	patched := swift.Clone(files)
	var fixes []string
	for _, i := range idx {
		next := repair.BalanceBraces(patched[i].Content)
		if next == patched[i].Content {
			continue
		}
		patched[i].Content = next
		fixes = append(fixes, fmt.Sprintf("%s: rebalanced braces", patched[i].Path))
	}
	return result(files, patched, fixes, "")
}
