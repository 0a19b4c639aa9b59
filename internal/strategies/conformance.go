package strategies

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
)

// Conformance adds a missing protocol to a type's declaration header.
type Conformance struct{}

func (Conformance) Name() string { return "conformance" }

func (Conformance) Triggers() []diagnostics.Category {
	return []diagnostics.Category{diagnostics.ProtocolConformance}
}

var idProperty = regexp.MustCompile(`\b(?:let|var)\s+id\b`)

func (Conformance) Attempt(_ []diagnostics.ErrorRecord, files []swift.File, cat diagnostics.Categorized) swift.RepairResult {
	patched := swift.Clone(files)
	var fixes, missing []string
	done := map[string]bool{}
	for _, rec := range cat[diagnostics.ProtocolConformance] {
		typ, proto := rec.Identifier, rec.Related
		if typ == "" || proto == "" {
			continue
		}
		key := typ + ":" + proto
		if done[key] {
			continue
		}
		done[key] = true

		fi, decl := findDeclaration(patched, typ)
		if fi < 0 {
			missing = append(missing, typ)
			continue
		}
		content, changed := addConformance(patched[fi].Content, decl, proto)
		if !changed {
			continue
		}
		patched[fi].Content = content
		fixes = append(fixes, fmt.Sprintf("%s: added %s conformance to %s", patched[fi].Path, proto, typ))
	}
	msg := ""
	if len(missing) > 0 {
		msg = "declaration not found: " + strings.Join(missing, ", ")
	}
	return result(files, patched, fixes, msg)
}

// declaration locates a type header inside one file.
type declaration struct {
	kind      string
	nameEnd   int // byte offset just past the type name and generic params
	openBrace int // offset of the body's '{'
}

// findDeclaration returns the first file declaring typ as a struct, class,
// enum or actor, and where.
func findDeclaration(files []swift.File, typ string) (int, declaration) {
	re := regexp.MustCompile(`\b(struct|class|enum|actor)\s+` + regexp.QuoteMeta(typ) + `\b(\s*<[^>{\n]*>)?`)
	for i, f := range files {
		code := swift.CodeOnly(f.Content)
		m := re.FindStringSubmatchIndex(code)
		if m == nil {
			continue
		}
		brace := strings.IndexByte(code[m[1]:], '{')
		if brace < 0 {
			continue
		}
		return i, declaration{kind: code[m[2]:m[3]], nameEnd: m[1], openBrace: m[1] + brace}
	}
	return -1, declaration{}
}

// addConformance inserts proto into the header at decl, and for an
// Identifiable struct without an id property, a "let id = UUID()" member.
// It reports false when proto is already listed.
func addConformance(content string, decl declaration, proto string) (string, bool) {
	header := content[decl.nameEnd:decl.openBrace]
	protoRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(proto) + `\b`)

	var newHeader string
	colon := strings.Index(header, ":")
	where := strings.Index(header, " where ")
	switch {
	case colon >= 0 && (where < 0 || colon < where):
		list := header
		tail := ""
		if where >= 0 {
			list, tail = header[:where], header[where:]
		}
		if protoRe.MatchString(list) {
			return content, false
		}
		trimmed := strings.TrimRight(list, " \t\n")
		newHeader = trimmed + ", " + proto + list[len(trimmed):] + tail
	default:
		newHeader = ": " + proto + header
	}
	if !strings.HasSuffix(newHeader, " ") && !strings.HasSuffix(newHeader, "\n") {
		newHeader += " "
	}
	out := content[:decl.nameEnd] + newHeader + content[decl.openBrace:]

	if proto == "Identifiable" && decl.kind == "struct" {
		brace := decl.openBrace + len(newHeader) - len(header)
		out = insertIDMember(out, brace)
	}
	return out, true
}

// insertIDMember adds "let id = UUID()" as the first member of the body
// opening at brace, unless the body already declares id.
func insertIDMember(content string, brace int) string {
	end := matchingBrace(content, brace)
	if end < 0 {
		return content
	}
	body := swift.CodeOnly(content[brace+1 : end])
	if idProperty.MatchString(body) {
		return content
	}
	indent := "    "
	if nl := strings.IndexByte(content[brace:], '\n'); nl >= 0 && brace+nl < end {
		line := content[brace+nl+1:]
		indent = line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if indent == "" {
			indent = "    "
		}
		insert := "\n" + indent + "let id = UUID()"
		out := content[:brace+1] + insert + content[brace+1:]
		return repair.InsertImports(out)
	}
	out := content[:brace+1] + " let id = UUID();" + content[brace+1:]
	return repair.InsertImports(out)
}

// matchingBrace returns the offset of the '}' closing the '{' at open, or -1.
func matchingBrace(content string, open int) int {
	kinds := swift.Classify(content)
	depth := 0
	for i := open; i < len(content); i++ {
		if kinds[i] != swift.Code {
			continue
		}
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
