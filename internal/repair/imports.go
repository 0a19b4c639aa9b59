package repair

import (
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/swift"
)

// ImportRule maps framework identifiers to the module that declares them.
// SatisfiedBy lists modules that re-export it.
type ImportRule struct {
	Module      string
	Pattern     *regexp.Regexp
	SatisfiedBy []string
}

// ImportRules is checked in order, so a module inserted by an earlier rule
// can satisfy a later one.
var ImportRules = []ImportRule{
	{
		Module:  "SwiftUI",
		Pattern: regexp.MustCompile(`\b(?:View|VStack|HStack|ZStack|LazyVStack|LazyHStack|WindowGroup|NavigationStack|NavigationView|Spacer|Scene)\b|\b(?:Text|Button|Image|List|Form|Toggle|TextField)\(|@(?:State|Binding|StateObject|ObservedObject|EnvironmentObject|Environment)\b`),
	},
	{
		Module:  "SwiftData",
		Pattern: regexp.MustCompile(`@(?:Model|Query)\b|\bModelContext\b|\bModelContainer\b|\.modelContainer\(`),
	},
	{
		Module:      "Combine",
		Pattern:     regexp.MustCompile(`@Published\b|\b(?:ObservableObject|AnyCancellable|PassthroughSubject|CurrentValueSubject)\b`),
		SatisfiedBy: []string{"SwiftUI"},
	},
	{
		Module:      "Foundation",
		Pattern:     regexp.MustCompile(`\b(?:UUID|Date|URL|URLSession|JSONDecoder|JSONEncoder|DateFormatter|UserDefaults|TimeInterval|NSObject)\b`),
		SatisfiedBy: []string{"SwiftUI", "UIKit", "SwiftData", "Combine"},
	},
}

var importLine = regexp.MustCompile(`^\s*(?:@\w+\s+)?import\s+(?:class\s+|struct\s+|enum\s+|protocol\s+|func\s+)?(\w+)`)

// InsertImports adds missing import statements for framework identifiers the
// file uses. Lines go after the last existing import, or after the leading
// comment block when there are none.
func InsertImports(content string) string {
	code := swift.CodeOnly(content)
	codeLines := strings.Split(code, "\n")

	have := map[string]bool{}
	lastImport := -1
	for i, l := range codeLines {
		if m := importLine.FindStringSubmatch(l); m != nil {
			have[m[1]] = true
			lastImport = i
		}
	}

	var missing []string
	for _, rule := range ImportRules {
		if have[rule.Module] || satisfied(have, rule.SatisfiedBy) {
			continue
		}
		if rule.Pattern.MatchString(code) {
			missing = append(missing, rule.Module)
			have[rule.Module] = true
		}
	}
	if len(missing) == 0 {
		return content
	}

	var stmts []string
	for _, mod := range missing {
		stmts = append(stmts, "import "+mod)
	}

	lines := strings.Split(content, "\n")
	at := lastImport + 1
	if lastImport < 0 {
		at = 0
		for at < len(lines) && strings.TrimSpace(codeLines[at]) == "" && strings.TrimSpace(lines[at]) != "" {
			at++
		}
		if at > 0 {
			if at < len(lines) && strings.TrimSpace(lines[at]) == "" {
				at++
			} else {
				stmts = append([]string{""}, stmts...)
			}
		}
		stmts = append(stmts, "")
	}
	out := make([]string, 0, len(lines)+len(stmts))
	out = append(out, lines[:at]...)
	out = append(out, stmts...)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}

func satisfied(have map[string]bool, by []string) bool {
	for _, m := range by {
		if have[m] {
			return true
		}
	}
	return false
}
