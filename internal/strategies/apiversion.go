package strategies

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
)

// modifierCall matches ".name(" through a closing paren allowing one level
// of nested parentheses.
func modifierCall(name string) *regexp.Regexp {
	return regexp.MustCompile(`\.` + name + `\((?:[^()\n]|\([^()\n]*\))*\)`)
}

// APIVersionTable maps OS-version-gated symbols to a fallback rewrite.
// Entries must not undo a DeprecatedRewrites entry or the two would
// oscillate.
var APIVersionTable = map[string][]repair.Rewrite{
	"symbolEffect":           {{Name: "drop symbolEffect", Pattern: modifierCall("symbolEffect"), Replace: ""}},
	"contentTransition":      {{Name: "drop contentTransition", Pattern: modifierCall("contentTransition"), Replace: ""}},
	"sensoryFeedback":        {{Name: "drop sensoryFeedback", Pattern: modifierCall("sensoryFeedback"), Replace: ""}},
	"scrollTargetBehavior":   {{Name: "drop scrollTargetBehavior", Pattern: modifierCall("scrollTargetBehavior"), Replace: ""}},
	"scrollTargetLayout":     {{Name: "drop scrollTargetLayout", Pattern: regexp.MustCompile(`\.scrollTargetLayout\(\)`), Replace: ""}},
	"containerRelativeFrame": {{Name: "drop containerRelativeFrame", Pattern: modifierCall("containerRelativeFrame"), Replace: ""}},
	"presentationDetents":    {{Name: "drop presentationDetents", Pattern: modifierCall("presentationDetents"), Replace: ""}},
	"fontDesign":             {{Name: "drop fontDesign", Pattern: modifierCall("fontDesign"), Replace: ""}},
	"ContentUnavailableView": {{
		Name:    "ContentUnavailableView to Text",
		Pattern: regexp.MustCompile(`\bContentUnavailableView\(("[^"\n]*")(?:[^()\n]|\([^()\n]*\))*\)`),
		Replace: `Text($1)`,
	}},
	"Observable": {{
		Name:    "@Observable to ObservableObject",
		Pattern: regexp.MustCompile(`@Observable\s+((?:final\s+)?class\s+\w+)\s*\{`),
		Replace: `$1: ObservableObject {`,
	}},
}

// APIVersion substitutes fallbacks for symbols the deployment target does
// not have.
type APIVersion struct{}

func (APIVersion) Name() string { return "api-version" }

func (APIVersion) Triggers() []diagnostics.Category {
	return []diagnostics.Category{diagnostics.UnavailableAPIVersion}
}

func (APIVersion) Attempt(_ []diagnostics.ErrorRecord, files []swift.File, cat diagnostics.Categorized) swift.RepairResult {
	patched := swift.Clone(files)
	var fixes, unknown []string
	for _, rec := range cat[diagnostics.UnavailableAPIVersion] {
		sym := symbolName(rec.Identifier)
		table, ok := APIVersionTable[sym]
		if !ok {
			if sym != "" {
				unknown = append(unknown, sym)
			}
			continue
		}
		idx := targetFiles(patched, []diagnostics.ErrorRecord{rec})
		if len(idx) == 0 {
			for i := range patched {
				idx = append(idx, i)
			}
		}
		for _, i := range idx {
			if !swift.IsSwift(patched[i].Path) {
				continue
			}
			next := repair.ApplyRewrites(patched[i].Content, table)
			if next == patched[i].Content {
				continue
			}
			patched[i].Content = next
			fixes = append(fixes, fmt.Sprintf("%s: %s", patched[i].Path, table[0].Name))
		}
	}
	msg := ""
	if len(unknown) > 0 {
		msg = "no fallback for: " + strings.Join(unknown, ", ")
	}
	return result(files, patched, fixes, msg)
}

// symbolName strips a selector suffix: "symbolEffect(_:options:value:)"
// becomes "symbolEffect".
func symbolName(id string) string {
	if i := strings.IndexByte(id, '('); i >= 0 {
		id = id[:i]
	}
	return strings.TrimPrefix(id, "@")
}
