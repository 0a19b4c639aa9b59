package repair

import (
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/swift"
)

// rewriteMatches rebuilds content, letting fn decide per match whether to
// replace it. fn receives the submatch index slice and the byte kinds of the
// original content.
func rewriteMatches(content string, re *regexp.Regexp, fn func(m []int, kinds []swift.Kind) (string, bool)) string {
	matches := re.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}
	kinds := swift.Classify(content)
	var b strings.Builder
	last := 0
	changed := false
	for _, m := range matches {
		repl, ok := fn(m, kinds)
		if !ok {
			continue
		}
		b.WriteString(content[last:m[0]])
		b.WriteString(repl)
		last = m[1]
		changed = true
	}
	if !changed {
		return content
	}
	b.WriteString(content[last:])
	return b.String()
}

// replaceInCode is ReplaceAllString restricted to matches that start in code.
func replaceInCode(content string, re *regexp.Regexp, template string) string {
	return rewriteMatches(content, re, func(m []int, kinds []swift.Kind) (string, bool) {
		if kinds[m[0]] != swift.Code {
			return "", false
		}
		var dst []byte
		dst = re.ExpandString(dst, template, content, m)
		return string(dst), true
	})
}
