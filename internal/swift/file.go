// Package swift holds the file model shared by every repair stage and a
// small string/comment-aware scanner over Swift source text.
package swift

import (
	"path"
	"sort"
	"strings"
)

// File is one source file of a generated project. Path is project-relative
// and forward-slash separated; it is the file's identity.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// RepairResult is returned by every repair strategy and by the recovery loop.
// FixesApplied is a human-readable audit trail.
type RepairResult struct {
	Success      bool     `json:"success"`
	Files        []File   `json:"files"`
	FixesApplied []string `json:"fixes_applied"`
	Message      string   `json:"message,omitempty"`
}

// Failed returns a non-success result carrying the original files.
func Failed(files []File, message string) RepairResult {
	return RepairResult{Success: false, Files: files, Message: message}
}

// Clone returns a deep copy of files so stages can replace content freely.
func Clone(files []File) []File {
	if files == nil {
		return nil
	}
	out := make([]File, len(files))
	copy(out, files)
	return out
}

// Find returns the index of the file at p, or -1.
func Find(files []File, p string) int {
	p = NormalizePath(p)
	for i, f := range files {
		if NormalizePath(f.Path) == p {
			return i
		}
	}
	return -1
}

// FindByBase returns the index of the first file whose base name matches
// name. Compiler output usually carries absolute paths.
func FindByBase(files []File, name string) int {
	base := path.Base(NormalizePath(name))
	for i, f := range files {
		if path.Base(NormalizePath(f.Path)) == base {
			return i
		}
	}
	return -1
}

// Equal reports whether two file sets hold the same paths with the same content.
func Equal(a, b []File) bool {
	if len(a) != len(b) {
		return false
	}
	idx := make(map[string]string, len(a))
	for _, f := range a {
		idx[NormalizePath(f.Path)] = f.Content
	}
	for _, f := range b {
		c, ok := idx[NormalizePath(f.Path)]
		if !ok || c != f.Content {
			return false
		}
	}
	return true
}

// Merge overlays updates onto base by path. New paths are appended in the
// order they appear in updates.
func Merge(base, updates []File) []File {
	out := Clone(base)
	for _, u := range updates {
		if i := Find(out, u.Path); i >= 0 {
			out[i].Content = u.Content
			continue
		}
		out = append(out, u)
	}
	return out
}

// Paths returns the sorted list of file paths.
func Paths(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}

// NormalizePath cleans p into the project-relative forward-slash form.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// IsSwift reports whether p names a Swift source file.
func IsSwift(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".swift")
}
