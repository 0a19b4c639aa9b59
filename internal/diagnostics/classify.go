// Package diagnostics turns raw compiler output into categorized error
// records and computes the fingerprint used for loop detection.
package diagnostics

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Category is an error class recognized by the classifier.
type Category string

const (
	MissingType           Category = "missing_type"
	ProtocolConformance   Category = "protocol_conformance"
	DeprecatedAPI         Category = "deprecated_api"
	UnavailableAPIVersion Category = "unavailable_api_version"
	PersistenceDependency Category = "persistence_dependency"
	StringLiteralError    Category = "string_literal_error"
	UnbalancedBraces      Category = "unbalanced_braces"
	SSLTransportSecurity  Category = "ssl_transport_security"
	APIDecodeError        Category = "api_decode_error"
	BuildTimeout          Category = "build_timeout"
)

// ErrorRecord is one raw error matched into one category. File, Line and
// Identifier are zero when the raw text does not carry them. Related holds
// a secondary name such as the protocol in a conformance error or the
// minimum OS version in an availability error.
type ErrorRecord struct {
	RawText    string   `json:"raw_text"`
	Category   Category `json:"category"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Column     int      `json:"column,omitempty"`
	Identifier string   `json:"identifier,omitempty"`
	Related    string   `json:"related,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// pattern is one matcher for a category. id and rel are capture group
// indexes for Identifier and Related; 0 means unused.
type pattern struct {
	re  *regexp.Regexp
	id  int
	rel int
}

type rule struct {
	category Category
	patterns []pattern
}

func match(expr string, id, rel int) pattern {
	return pattern{re: regexp.MustCompile(expr), id: id, rel: rel}
}

// Natural-language phrases match case-insensitively; quoted identifiers
// match case-sensitively.
var rules = []rule{
	{MissingType, []pattern{
		match(`(?i:cannot find type) '(\w+)' (?i:in scope)`, 1, 0),
		match(`(?i:cannot find) '(\w+)' (?i:in scope)`, 1, 0),
		match(`(?i:use of undeclared type) '(\w+)'`, 1, 0),
		match(`(?i:use of unresolved identifier) '(\w+)'`, 1, 0),
		match(`(?i:no such module) '(\w+)'`, 1, 0),
	}},
	{ProtocolConformance, []pattern{
		match(`(?i:type) '(\w+)' (?i:does not conform to protocol) '(\w+)'`, 1, 2),
		match(`(?i:requires that) '(\w+)' (?i:conform to) '(\w+)'`, 1, 2),
		match(`'(\w+)' (?i:must conform to) '(\w+)'`, 1, 2),
	}},
	{DeprecatedAPI, []pattern{
		match(`'([\w(:)]+)' (?i:(?:was|is) deprecated)`, 1, 0),
		match(`(?i:deprecated in iOS)`, 0, 0),
	}},
	{UnavailableAPIVersion, []pattern{
		match(`'([\w(:)]+)' (?i:is only available in iOS) ([\d.]+)`, 1, 2),
		match(`'([\w(:)]+)' (?i:is unavailable in iOS)`, 1, 0),
		match(`(?i:only available in iOS) ([\d.]+) (?i:or newer)`, 0, 1),
	}},
	{PersistenceDependency, []pattern{
		match(`'(\w*(?:Persistence|CoreData|NSPersistent|ModelContainer|ManagedObject|Realm)\w*)'`, 1, 0),
		match(`(?i)core ?data|swiftdata|persistent container|managed object context|realm`, 0, 0),
	}},
	{StringLiteralError, []pattern{
		match(`(?i)unterminated string literal`, 0, 0),
		match(`(?i)single-quoted string literal`, 0, 0),
		match(`(?i)invalid escape sequence`, 0, 0),
		match(`(?i)unterminated multi-line string`, 0, 0),
	}},
	{UnbalancedBraces, []pattern{
		match(`(?i)expected '\}'`, 0, 0),
		match(`(?i)extraneous '\}'`, 0, 0),
		match(`(?i)unexpected '\}'`, 0, 0),
		match(`(?i)to match this opening '\{'`, 0, 0),
	}},
	{SSLTransportSecurity, []pattern{
		match(`(?i)app transport security|NSAppTransportSecurity`, 0, 0),
		match(`(?i)ssl error|secure connection to the server|certificate for this server is invalid`, 0, 0),
	}},
	{APIDecodeError, []pattern{
		match(`\b(keyNotFound|typeMismatch|valueNotFound|dataCorrupted)\b`, 0, 0),
		match(`(?i)DecodingError|failed to decode|isn.t in the correct format`, 0, 0),
	}},
	{BuildTimeout, []pattern{
		match(`(?i)\btimed out\b|\btimeout\b`, 0, 0),
	}},
}

var (
	locationPattern = regexp.MustCompile(`^\s*(.+?\.swift):(\d+):(?:(\d+):)?\s*(?:fatal error|error|warning|note):\s*(.*)$`)
	quotedName      = regexp.MustCompile(`'(\w+)'`)
)

// Categorized maps each category to the records matched into it.
type Categorized map[Category][]ErrorRecord

// Classify matches every raw error against every category. A raw error can
// land in several categories; unmatched errors land in none. Classify never
// fails on malformed text.
func Classify(rawErrors []string) Categorized {
	out := Categorized{}
	for _, raw := range rawErrors {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		for _, rec := range ClassifyOne(raw) {
			out[rec.Category] = append(out[rec.Category], rec)
		}
	}
	return out
}

// ClassifyOne returns one record per category the raw error matches.
func ClassifyOne(raw string) []ErrorRecord {
	base := ParseLine(raw)
	var recs []ErrorRecord
	for _, r := range rules {
		for _, pat := range r.patterns {
			m := pat.re.FindStringSubmatch(raw)
			if m == nil {
				continue
			}
			rec := base
			rec.Category = r.category
			if pat.id > 0 && m[pat.id] != "" {
				rec.Identifier = m[pat.id]
			}
			if pat.rel > 0 {
				rec.Related = m[pat.rel]
			}
			recs = append(recs, rec)
			break
		}
	}
	return recs
}

// ParseLine extracts file, line, column and message from compiler output
// shaped like "path/File.swift:12:5: error: message". Unstructured text
// yields a record with only RawText, Message and the first quoted name.
func ParseLine(raw string) ErrorRecord {
	rec := ErrorRecord{RawText: raw, Message: strings.TrimSpace(raw)}
	if m := locationPattern.FindStringSubmatch(raw); m != nil {
		rec.File = m[1]
		rec.Line, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			rec.Column, _ = strconv.Atoi(m[3])
		}
		rec.Message = strings.TrimSpace(m[4])
	}
	if m := quotedName.FindStringSubmatch(rec.Message); m != nil {
		rec.Identifier = m[1]
	}
	return rec
}

// Categories returns the matched categories in sorted order.
func (c Categorized) Categories() []Category {
	out := make([]Category, 0, len(c))
	for cat, recs := range c {
		if len(recs) > 0 {
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether any record matched cat.
func (c Categorized) Has(cat Category) bool {
	return len(c[cat]) > 0
}

// All returns every record, ordered by category then input order.
func (c Categorized) All() []ErrorRecord {
	var out []ErrorRecord
	for _, cat := range c.Categories() {
		out = append(out, c[cat]...)
	}
	return out
}

// Summary renders "category×count" pairs for logs.
func (c Categorized) Summary() string {
	cats := c.Categories()
	if len(cats) == 0 {
		return "unclassified"
	}
	parts := make([]string, 0, len(cats))
	for _, cat := range cats {
		parts = append(parts, string(cat)+"×"+strconv.Itoa(len(c[cat])))
	}
	return strings.Join(parts, ", ")
}

// Fingerprint hashes the sorted set of matched categories. Raw text, file
// names and line numbers do not contribute, so the same kinds of failure
// collapse to one fingerprint. The empty set has a fingerprint too.
func Fingerprint(c Categorized) string {
	cats := c.Categories()
	names := make([]string, len(cats))
	for i, cat := range cats {
		names[i] = string(cat)
	}
	sum := sha256.Sum256([]byte(strings.Join(names, ",")))
	return hex.EncodeToString(sum[:])[:16]
}

// FingerprintErrors classifies raw errors and fingerprints the result.
func FingerprintErrors(rawErrors []string) string {
	return Fingerprint(Classify(rawErrors))
}
