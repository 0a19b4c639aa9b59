package repair

import (
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/swift"
)

var (
	leadingDoubledQuote  = regexp.MustCompile(`""(\w[^"\n]*)"`)
	trailingDoubledQuote = regexp.MustCompile(`"(\w[^"\n]*?\w|\w)""`)
)

// NormalizeQuotes turns single-quoted literals in code into double-quoted
// ones. Apostrophes inside comments and double-quoted strings are left
// alone, as are pairs whose content would need escaping.
func NormalizeQuotes(content string) string {
	if !strings.Contains(content, "'") {
		return content
	}
	kinds := swift.Classify(content)
	b := []byte(content)
	changed := false
	for i := 0; i < len(b); i++ {
		if b[i] != '\'' || kinds[i] != swift.Code {
			continue
		}
		j := i + 1
		for j < len(b) && b[j] != '\n' && b[j] != '\'' && b[j] != '\\' && kinds[j] == swift.Code {
			j++
		}
		if j >= len(b) || b[j] != '\'' || kinds[j] != swift.Code {
			continue
		}
		b[i], b[j] = '"', '"'
		changed = true
		i = j
	}
	if !changed {
		return content
	}
	return string(b)
}

// CollapseDoubledQuotes repairs ""x" and "x"" sequences left by careless
// quote substitution.
func CollapseDoubledQuotes(content string) string {
	if !strings.Contains(content, `""`) {
		return content
	}
	content = collapseWith(content, leadingDoubledQuote)
	return collapseWith(content, trailingDoubledQuote)
}

func collapseWith(content string, re *regexp.Regexp) string {
	return rewriteMatches(content, re, func(m []int, kinds []swift.Kind) (string, bool) {
		if kinds[m[0]] == swift.LineComment || kinds[m[0]] == swift.BlockComment {
			return "", false
		}
		if m[0] > 0 && content[m[0]-1] == '"' {
			return "", false
		}
		if m[1] < len(content) && content[m[1]] == '"' {
			return "", false
		}
		return `"` + content[m[2]:m[3]] + `"`, true
	})
}

// FixQuotes runs quote normalization followed by doubled-quote collapsing.
func FixQuotes(content string) string {
	return CollapseDoubledQuotes(NormalizeQuotes(content))
}
