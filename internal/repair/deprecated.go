package repair

import "regexp"

// Rewrite is one old-pattern to new-pattern substitution.
type Rewrite struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// DeprecatedRewrites maps deprecated SwiftUI calls to their modern forms.
// Every replacement must not match its own pattern.
var DeprecatedRewrites = []Rewrite{
	{
		Name:    "navigationBarTitle with displayMode",
		Pattern: regexp.MustCompile(`\.navigationBarTitle\(("[^"\n]*"|[A-Za-z_][\w.]*),\s*displayMode:\s*\.(inline|large|automatic)\)`),
		Replace: `.navigationTitle($1).navigationBarTitleDisplayMode(.$2)`,
	},
	{
		Name:    "navigationBarTitle",
		Pattern: regexp.MustCompile(`\.navigationBarTitle\(("[^"\n]*"|[A-Za-z_][\w.]*)\)`),
		Replace: `.navigationTitle($1)`,
	},
	{
		Name:    "NavigationView",
		Pattern: regexp.MustCompile(`\bNavigationView\b`),
		Replace: `NavigationStack`,
	},
	{
		Name:    "foregroundColor",
		Pattern: regexp.MustCompile(`\.foregroundColor\(`),
		Replace: `.foregroundStyle(`,
	},
	{
		Name:    "accentColor",
		Pattern: regexp.MustCompile(`\.accentColor\(`),
		Replace: `.tint(`,
	},
	{
		Name:    "edgesIgnoringSafeArea",
		Pattern: regexp.MustCompile(`\.edgesIgnoringSafeArea\(\.all\)`),
		Replace: `.ignoresSafeArea()`,
	},
	{
		Name:    "autocapitalization",
		Pattern: regexp.MustCompile(`\.autocapitalization\(\.none\)`),
		Replace: `.textInputAutocapitalization(.never)`,
	},
	{
		Name:    "cornerRadius",
		Pattern: regexp.MustCompile(`\.cornerRadius\(([^()\n]*)\)`),
		Replace: `.clipShape(RoundedRectangle(cornerRadius: $1))`,
	},
	{
		Name:    "single-parameter onChange",
		Pattern: regexp.MustCompile(`\.onChange\(of:\s*([^\n{}]*?)\)\s*\{\s*(\w+)\s+in\b`),
		Replace: `.onChange(of: $1) { _, $2 in`,
	},
}

var forEachRewrites = []Rewrite{
	{
		Name:    "ForEach over dynamic range",
		Pattern: regexp.MustCompile(`\bForEach\((\d+\s*\.\.[<.]\s*[A-Za-z_][\w.]*)\)`),
		Replace: `ForEach($1, id: \.self)`,
	},
	{
		Name:    "ForEach over literal array",
		Pattern: regexp.MustCompile(`\bForEach\((\[[^\[\]\n]*\])\)`),
		Replace: `ForEach($1, id: \.self)`,
	},
}

// RewriteDeprecated applies DeprecatedRewrites in order, only where the
// match starts in code.
func RewriteDeprecated(content string) string {
	return applyRewrites(content, DeprecatedRewrites)
}

// FixForEachIDs adds id: \.self to ForEach calls over ranges and literal
// arrays whose elements are not Identifiable.
func FixForEachIDs(content string) string {
	return applyRewrites(content, forEachRewrites)
}

// ApplyRewrites runs an arbitrary rewrite table the same way.
func ApplyRewrites(content string, table []Rewrite) string {
	return applyRewrites(content, table)
}

func applyRewrites(content string, table []Rewrite) string {
	for _, rw := range table {
		if !rw.Pattern.MatchString(content) {
			continue
		}
		content = replaceInCode(content, rw.Pattern, rw.Replace)
	}
	return content
}
