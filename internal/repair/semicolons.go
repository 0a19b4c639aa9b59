package repair

import (
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/swift"
)

var (
	modifierSemicolon = regexp.MustCompile(`\b(private|fileprivate|public|internal|open|static|final|override|lazy|weak|mutating|nonisolated)[ \t]*;[ \t]*(var|let|func|class|struct|enum|init|static|final|override|private)\b`)
	semicolonKeyword  = regexp.MustCompile(`;[ \t]*(else|catch)\b`)
	trailingSemicolon = regexp.MustCompile(`(?m)(;+)[ \t]*(//[^\n]*)?$`)
)

// StripSemicolons removes semicolons Swift does not need: at end of line,
// before else/catch, and between a modifier and its declaration.
// Semicolons separating statements on one line are kept.
func StripSemicolons(content string) string {
	if !strings.Contains(content, ";") {
		return content
	}
	content = rewriteMatches(content, modifierSemicolon, func(m []int, kinds []swift.Kind) (string, bool) {
		if kinds[m[0]] != swift.Code {
			return "", false
		}
		return content[m[2]:m[3]] + " " + content[m[4]:m[5]], true
	})
	content = rewriteMatches(content, semicolonKeyword, func(m []int, kinds []swift.Kind) (string, bool) {
		if kinds[m[0]] != swift.Code {
			return "", false
		}
		return " " + content[m[2]:m[3]], true
	})
	content = rewriteMatches(content, trailingSemicolon, func(m []int, kinds []swift.Kind) (string, bool) {
		if kinds[m[2]] != swift.Code {
			return "", false
		}
		if m[4] < 0 {
			return "", true
		}
		return content[m[3]:m[1]], true
	})
	return content
}
