package orchestration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/swift"
)

// extractJSON finds and extracts the first JSON object from a string.
// Handles responses that contain thinking text before/after a ```json code block.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Prefer the content of a markdown code fence.
	if idx := strings.Index(s, "```"); idx >= 0 {
		lineEnd := strings.Index(s[idx:], "\n")
		if lineEnd >= 0 {
			contentStart := idx + lineEnd + 1
			closingFence := strings.Index(s[contentStart:], "```")
			if closingFence >= 0 {
				s = s[contentStart : contentStart+closingFence]
			} else {
				s = s[contentStart:]
			}
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end > start {
		return s[start : end+1]
	}
	return s
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// UniqueProjectDir returns a project directory path that does not already exist.
// If <catalogDir>/<appName> is free it is returned as-is.
// Otherwise it appends a counter: <appName>2, <appName>3, …
func UniqueProjectDir(catalogDir, appName string) string {
	candidate := filepath.Join(catalogDir, appName)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	for n := 2; n <= 999; n++ {
		candidate = filepath.Join(catalogDir, fmt.Sprintf("%s%d", appName, n))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return candidate
}

var mainAppDecl = regexp.MustCompile(`@main\s+struct\s+(\w+)`)

// AppNameFromFiles derives an app name from the @main declaration, dropping
// a trailing "App". It returns "App" when there is none.
func AppNameFromFiles(files []swift.File) string {
	for _, f := range files {
		m := mainAppDecl.FindStringSubmatch(swift.CodeOnly(f.Content))
		if m == nil {
			continue
		}
		if name := strings.TrimSuffix(m[1], "App"); name != "" {
			return name
		}
		return m[1]
	}
	return "App"
}

// appName turns a user-supplied name into a Swift type name.
func appName(name string) string {
	return service.SanitizeToPascalCase(name)
}
