package strategies

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/swift"
)

// HeavyweightTypes are storage-framework entry points a model tends to
// reference without generating.
var HeavyweightTypes = map[string]bool{
	"PersistenceController":         true,
	"CoreDataStack":                 true,
	"CoreDataManager":               true,
	"DataController":                true,
	"NSPersistentContainer":         true,
	"NSPersistentCloudKitContainer": true,
	"ModelContainer":                true,
	"RealmManager":                  true,
	"Realm":                         true,
}

var heavyweightName = regexp.MustCompile(`Persistence|CoreData|NSPersistent|ModelContainer|ManagedObject|Realm`)

// bindingName captures the variable bound on a declaration line.
var bindingName = regexp.MustCompile(`^\s*(?:@\w+(?:\([^)]*\))?\s+)*(?:(?:private|fileprivate|public|internal|static|lazy|weak)\s+)*(?:let|var)\s+(\w+)`)

// DependencyStrip deletes every reference to an undeclared persistence
// framework type. Deletion is preferred over synthesizing the missing type.
type DependencyStrip struct{}

func (DependencyStrip) Name() string { return "dependency-strip" }

func (DependencyStrip) Triggers() []diagnostics.Category {
	return []diagnostics.Category{diagnostics.PersistenceDependency, diagnostics.MissingType}
}

func (DependencyStrip) Attempt(_ []diagnostics.ErrorRecord, files []swift.File, cat diagnostics.Categorized) swift.RepairResult {
	targets := stripTargets(files, cat)
	if len(targets) == 0 {
		return swift.Failed(files, "no undeclared persistence types referenced")
	}
	patched := swift.Clone(files)
	var fixes []string
	for i := range patched {
		content, removed := stripReferences(patched[i].Content, targets)
		if len(removed) == 0 {
			continue
		}
		patched[i].Content = content
		fixes = append(fixes, fmt.Sprintf("%s: removed references to %s", patched[i].Path, strings.Join(removed, ", ")))
	}
	return result(files, patched, fixes, "")
}

// stripTargets returns the heavyweight identifiers named by the errors that
// no file declares.
func stripTargets(files []swift.File, cat diagnostics.Categorized) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range []diagnostics.Category{diagnostics.PersistenceDependency, diagnostics.MissingType} {
		for _, rec := range cat[c] {
			id := rec.Identifier
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if !HeavyweightTypes[id] && !heavyweightName.MatchString(id) {
				continue
			}
			if declared(files, id) {
				continue
			}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func declared(files []swift.File, id string) bool {
	re := regexp.MustCompile(`\b(?:struct|class|enum|actor|protocol|typealias)\s+` + regexp.QuoteMeta(id) + `\b`)
	for _, f := range files {
		if re.MatchString(swift.CodeOnly(f.Content)) {
			return true
		}
	}
	return false
}

// stripReferences removes modifier calls, lines and blocks mentioning any
// target. Variables bound on removed lines become targets too, so their
// later uses go as well. It returns the names actually removed.
func stripReferences(content string, targets []string) (string, []string) {
	names := append([]string(nil), targets...)
	removed := map[string]bool{}
	for pass := 0; pass < 4; pass++ {
		re := wordsPattern(names)
		if !re.MatchString(content) {
			break
		}
		lines := strings.Split(content, "\n")
		var out []string
		for i := 0; i < len(lines); i++ {
			line := lines[i]
			hits := re.FindAllString(line, -1)
			if len(hits) == 0 {
				out = append(out, line)
				continue
			}
			for _, h := range hits {
				removed[h] = true
			}
			if stripped, ok := stripCalls(line, re); ok {
				out = append(out, stripped)
				continue
			}
			if m := bindingName.FindStringSubmatch(line); m != nil && !contains(names, m[1]) {
				names = append(names, m[1])
			}
			switch delta := swift.BraceDelta(line); {
			case delta > 0:
				i = blockEnd(lines, i)
			case delta < 0:
				indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
				out = append(out, indent+strings.Repeat("}", -delta))
			}
		}
		content = strings.Join(out, "\n")
	}
	var list []string
	for n := range removed {
		list = append(list, n)
	}
	sort.Strings(list)
	return content, list
}

func wordsPattern(names []string) *regexp.Regexp {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// blockEnd returns the index of the line that closes the block opened on
// lines[start].
func blockEnd(lines []string, start int) int {
	depth := 0
	for j := start; j < len(lines); j++ {
		depth += swift.BraceDelta(lines[j])
		if depth <= 0 {
			return j
		}
	}
	return len(lines) - 1
}

// stripCalls removes ".name(...)" modifier calls on line that contain a
// target. It fails when a target sits outside such a call or the line
// would be left empty.
func stripCalls(line string, re *regexp.Regexp) (string, bool) {
	for guard := 0; guard < 8; guard++ {
		loc := re.FindStringIndex(line)
		if loc == nil {
			break
		}
		start, end, ok := enclosingModifier(line, loc[0])
		if !ok {
			return line, false
		}
		line = line[:start] + line[end:]
	}
	if re.MatchString(line) || strings.TrimSpace(line) == "" {
		return line, false
	}
	return line, true
}

// enclosingModifier finds the ".name(" call whose parentheses enclose pos
// and returns the span from the dot through the closing paren.
func enclosingModifier(line string, pos int) (int, int, bool) {
	kinds := swift.Classify(line)
	depth := 0
	open := -1
	for i := pos - 1; i >= 0; i-- {
		if kinds[i] != swift.Code {
			continue
		}
		switch line[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				open = i
			} else {
				depth--
			}
		}
		if open >= 0 {
			break
		}
	}
	if open < 0 {
		return 0, 0, false
	}
	nameStart := open
	for nameStart > 0 && isIdentByte(line[nameStart-1]) {
		nameStart--
	}
	if nameStart == open || nameStart == 0 || line[nameStart-1] != '.' {
		return 0, 0, false
	}
	depth = 0
	for i := open; i < len(line); i++ {
		if kinds[i] != swift.Code {
			continue
		}
		switch line[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return nameStart - 1, i + 1, true
			}
		}
	}
	return 0, 0, false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
