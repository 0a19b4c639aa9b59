package orchestration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/moasq/swiftsmith/internal/swift"
)

// ResponseParser extracts a file set from raw LLM text. ok is false when the
// parser does not recognise the shape.
type ResponseParser interface {
	Name() string
	Parse(text string) (files []swift.File, ok bool)
}

// DefaultParsers returns the parser chain in the order it is tried.
func DefaultParsers() []ResponseParser {
	return []ResponseParser{directJSON{}, embeddedJSON{}, codeBlocks{}}
}

// ParseResponse runs parsers in order and returns the first non-empty file
// set with the name of the parser that produced it.
func ParseResponse(text string, parsers []ResponseParser) ([]swift.File, string, error) {
	for _, p := range parsers {
		if files, ok := p.Parse(text); ok && len(files) > 0 {
			return files, p.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNoFiles, truncateStr(strings.TrimSpace(text), 200))
}

// directJSON accepts a response that is exactly one JSON document.
type directJSON struct{}

func (directJSON) Name() string { return "direct_json" }

func (directJSON) Parse(text string) ([]swift.File, bool) {
	return decodeFiles([]byte(strings.TrimSpace(text)))
}

// embeddedJSON finds JSON inside fenced blocks or surrounding prose.
type embeddedJSON struct{}

func (embeddedJSON) Name() string { return "embedded_json" }

var jsonFence = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\n(.*?)```")

func (embeddedJSON) Parse(text string) ([]swift.File, bool) {
	for _, m := range jsonFence.FindAllStringSubmatch(text, -1) {
		if files, ok := decodeFiles([]byte(strings.TrimSpace(m[1]))); ok {
			return files, true
		}
	}
	return decodeFiles([]byte(extractJSON(text)))
}

// fileEntry accepts the key spellings models use for a file object.
type fileEntry struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Code     string `json:"code"`
}

func (e fileEntry) file() swift.File {
	p := e.Path
	if p == "" {
		p = e.Filename
	}
	if p == "" {
		p = e.Name
	}
	c := e.Content
	if c == "" {
		c = e.Code
	}
	return swift.File{Path: p, Content: c}
}

// decodeFiles understands {"files": [...]}, {"files": {"path": "content"}}
// and a bare array of file objects.
func decodeFiles(data []byte) ([]swift.File, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || (data[0] != '{' && data[0] != '[') {
		return nil, false
	}

	var entries []fileEntry
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, false
		}
		return cleanFiles(entries)
	}

	var envelope struct {
		Files json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Files) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(envelope.Files, &entries); err == nil {
		return cleanFiles(entries)
	}
	var byPath map[string]string
	if err := json.Unmarshal(envelope.Files, &byPath); err != nil {
		return nil, false
	}
	entries = entries[:0]
	for p, c := range byPath {
		entries = append(entries, fileEntry{Path: p, Content: c})
	}
	files, ok := cleanFiles(entries)
	sortFiles(files)
	return files, ok
}

func cleanFiles(entries []fileEntry) ([]swift.File, bool) {
	var out []swift.File
	for _, e := range entries {
		f := e.file()
		f.Path = swift.NormalizePath(f.Path)
		if f.Path == "" || strings.TrimSpace(f.Content) == "" {
			continue
		}
		out = append(out, f)
	}
	return out, len(out) > 0
}

// codeBlocks pulls Swift code out of fenced blocks, or takes the whole text
// when it is bare Swift.
type codeBlocks struct{}

func (codeBlocks) Name() string { return "code_blocks" }

var (
	codeFence      = regexp.MustCompile("(?s)```([\\w+-]*)[ \t]*\n(.*?)```")
	// fileLabel matches a file name in a heading, bold text or comment.
	fileLabel      = regexp.MustCompile(`([\w./-]+\.swift)\b`)
	typeDecl       = regexp.MustCompile(`(?m)^\s*(?:@main\s+)?(?:(?:public|internal|final|private)\s+)*(?:struct|class|enum|actor)\s+(\w+)`)
	looksLikeSwift = regexp.MustCompile(`(?m)^\s*import\s+(?:SwiftUI|Foundation|UIKit)\b`)
)

func (codeBlocks) Parse(text string) ([]swift.File, bool) {
	var out []swift.File
	used := map[string]bool{}
	add := func(label, code string) {
		if strings.TrimSpace(code) == "" {
			return
		}
		path := swift.NormalizePath(label)
		if path == "" {
			path = pathForCode(code, len(out)+1)
		}
		for used[path] {
			path = strings.TrimSuffix(path, ".swift") + "2.swift"
		}
		used[path] = true
		out = append(out, swift.File{Path: path, Content: strings.TrimRight(code, " \t\n") + "\n"})
	}

	matches := codeFence.FindAllStringSubmatchIndex(text, -1)
	prev := 0
	for _, m := range matches {
		lang := strings.ToLower(text[m[2]:m[3]])
		code := text[m[4]:m[5]]
		if (lang == "" || lang == "swift") && !json.Valid([]byte(strings.TrimSpace(code))) {
			add(labelFor(text[prev:m[0]], code), code)
		}
		prev = m[1]
	}
	if len(out) == 0 && len(matches) == 0 && looksLikeSwift.MatchString(text) {
		add(labelFor("", text), text)
	}
	return out, len(out) > 0
}

// labelFor finds a file name on the last non-empty line before a block or on
// the block's first comment line.
func labelFor(before, code string) string {
	lines := strings.Split(strings.TrimRight(before, " \t\n"), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		if m := fileLabel.FindStringSubmatch(last); m != nil {
			return m[1]
		}
	}
	first := strings.TrimSpace(strings.SplitN(strings.TrimLeft(code, " \t\n"), "\n", 2)[0])
	if strings.HasPrefix(first, "//") {
		if m := fileLabel.FindStringSubmatch(first); m != nil {
			return m[1]
		}
	}
	return ""
}

// pathForCode names a file after its first type declaration.
func pathForCode(code string, n int) string {
	if m := typeDecl.FindStringSubmatch(swift.CodeOnly(code)); m != nil {
		return m[1] + ".swift"
	}
	return fmt.Sprintf("File%d.swift", n)
}

func sortFiles(files []swift.File) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
