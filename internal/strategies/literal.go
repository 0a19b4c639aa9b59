package strategies

import (
	"fmt"
	"strings"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
)

// StringLiteral re-runs quote fixing and closes strings left open at end of
// line. Files named by the errors are targeted; with no file names every
// Swift file is.
type StringLiteral struct{}

func (StringLiteral) Name() string { return "string-literal" }

func (StringLiteral) Triggers() []diagnostics.Category {
	return []diagnostics.Category{diagnostics.StringLiteralError}
}

func (StringLiteral) Attempt(_ []diagnostics.ErrorRecord, files []swift.File, cat diagnostics.Categorized) swift.RepairResult {
	idx := targetFiles(files, cat[diagnostics.StringLiteralError])
	if len(idx) == 0 {
		for i, f := range files {
			if swift.IsSwift(f.Path) {
				idx = append(idx, i)
			}
		}
	}
	patched := swift.Clone(files)
	var fixes []string
	for _, i := range idx {
		content, closed := closeOpenStrings(repair.FixQuotes(patched[i].Content))
		if content == patched[i].Content {
			continue
		}
		patched[i].Content = content
		fix := fmt.Sprintf("%s: normalized string literals", patched[i].Path)
		if closed > 0 {
			fix = fmt.Sprintf("%s: closed %d unterminated string literal(s)", patched[i].Path, closed)
		}
		fixes = append(fixes, fix)
	}
	return result(files, patched, fixes, "")
}

// closeOpenStrings inserts a closing quote on every line that ends inside a
// string literal. The quote goes before a trailing run of closing
// punctuation so Text("Hi) becomes Text("Hi").
func closeOpenStrings(content string) (string, int) {
	open := swift.UnterminatedLines(content)
	if len(open) == 0 {
		return content, 0
	}
	lines := strings.Split(content, "\n")
	for _, n := range open {
		if n >= len(lines) {
			continue
		}
		line := strings.TrimRight(lines[n], " \t")
		cut := len(line)
		for cut > 0 && strings.ContainsRune("),]}{ ", rune(line[cut-1])) {
			cut--
		}
		// Keep at least one character of string content before the quote.
		if cut == 0 || line[cut-1] == '"' {
			cut = len(line)
		}
		lines[n] = line[:cut] + `"` + line[cut:]
	}
	out := strings.Join(lines, "\n")
	if len(swift.UnterminatedLines(out)) >= len(open) {
		return content, 0
	}
	return out, len(open) - len(swift.UnterminatedLines(out))
}
