package repair

import (
	"strings"

	"github.com/moasq/swiftsmith/internal/swift"
)

// BalanceBraces makes the count of code braces equal. A deficit of closing
// braces is appended at end of file. A surplus is removed first from
// trailing standalone "}" lines, then by dropping closing braces that have
// no matching opener. Content is returned unchanged if the result would
// still be unbalanced.
func BalanceBraces(content string) string {
	delta := swift.BraceDelta(content)
	switch {
	case delta == 0:
		return content
	case delta > 0:
		out := appendCloses(content, delta)
		if swift.BraceDelta(out) != 0 {
			return content
		}
		return out
	default:
		out := stripTrailingCloses(content, -delta)
		if d := swift.BraceDelta(out); d < 0 {
			out = dropUnmatchedCloses(out)
		}
		if d := swift.BraceDelta(out); d > 0 {
			out = appendCloses(out, d)
		}
		if swift.BraceDelta(out) != 0 {
			return content
		}
		return out
	}
}

func appendCloses(content string, n int) string {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + strings.Repeat("}\n", n)
}

// stripTrailingCloses removes up to n standalone "}" lines from the end,
// skipping blank lines.
func stripTrailingCloses(content string, n int) string {
	hadNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	end := len(lines)
	for n > 0 && end > 0 {
		l := strings.TrimSpace(lines[end-1])
		if l == "" {
			end--
			continue
		}
		if l != "}" {
			break
		}
		lines = append(lines[:end-1], lines[end:]...)
		end--
		n--
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	out := strings.Join(lines, "\n")
	if hadNewline {
		out += "\n"
	}
	return out
}

// dropUnmatchedCloses removes every code "}" that would take the running
// depth below zero.
func dropUnmatchedCloses(content string) string {
	kinds := swift.Classify(content)
	var b strings.Builder
	depth := 0
	for i := 0; i < len(content); i++ {
		c := content[i]
		if kinds[i] == swift.Code {
			switch c {
			case '{':
				depth++
			case '}':
				if depth == 0 {
					continue
				}
				depth--
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
