package strategies

import (
	"fmt"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
)

// DeprecatedRewrite reapplies the deprecated-modifier table to the files
// named by deprecation errors. Those errors usually come from edits made
// after the repair pass, so the table is worth a second run.
type DeprecatedRewrite struct{}

func (DeprecatedRewrite) Name() string { return "deprecated-rewrite" }

func (DeprecatedRewrite) Triggers() []diagnostics.Category {
	return []diagnostics.Category{diagnostics.DeprecatedAPI}
}

func (DeprecatedRewrite) Attempt(_ []diagnostics.ErrorRecord, files []swift.File, cat diagnostics.Categorized) swift.RepairResult {
	idx := targetFiles(files, cat[diagnostics.DeprecatedAPI])
	if len(idx) == 0 {
		// Deprecation notes without a location: sweep every file.
		for i := range files {
			idx = append(idx, i)
		}
	}
	patched := swift.Clone(files)
	var fixes []string
	for _, i := range idx {
		next := repair.RewriteDeprecated(patched[i].Content)
		if next == patched[i].Content {
			continue
		}
		patched[i].Content = next
		fixes = append(fixes, fmt.Sprintf("%s: rewrote deprecated modifiers", patched[i].Path))
	}
	return result(files, patched, fixes, "no deprecated modifier matched")
}
