package swift

import "strings"

// Kind classifies a byte of Swift source.
type Kind uint8

const (
	Code Kind = iota
	StringLit
	LineComment
	BlockComment
)

// scanResult is the output of a single pass over a file.
type scanResult struct {
	kinds []Kind
	// unterminated holds 0-based line numbers where a single-line string
	// literal was still open when the line ended.
	unterminated []int
}

// scan walks content byte by byte tracking inString, inLineComment,
// inBlockComment and escapeNext. It is a heuristic, not a lexer: string
// interpolation is treated as string content and raw strings (#"..."#) are
// not recognized.
func scan(content string) scanResult {
	res := scanResult{kinds: make([]Kind, len(content))}
	var (
		inString      bool
		inMultiline   bool
		inLineComment bool
		blockDepth    int
		escapeNext    bool
		line          int
	)
	mark := func(i, n int, k Kind) {
		for j := i; j < i+n && j < len(content); j++ {
			res.kinds[j] = k
		}
	}
	for i := 0; i < len(content); i++ {
		c := content[i]
		var next byte
		if i+1 < len(content) {
			next = content[i+1]
		}
		switch {
		case inLineComment:
			if c == '\n' {
				inLineComment = false
				res.kinds[i] = Code
			} else {
				res.kinds[i] = LineComment
			}
		case blockDepth > 0:
			res.kinds[i] = BlockComment
			if c == '*' && next == '/' {
				mark(i, 2, BlockComment)
				i++
				blockDepth--
			} else if c == '/' && next == '*' {
				mark(i, 2, BlockComment)
				i++
				blockDepth++
			}
		case inMultiline:
			res.kinds[i] = StringLit
			if escapeNext {
				escapeNext = false
			} else if c == '\\' {
				escapeNext = true
			} else if strings.HasPrefix(content[i:], `"""`) {
				mark(i, 3, StringLit)
				i += 2
				inMultiline = false
			}
		case inString:
			switch {
			case c == '\n':
				res.kinds[i] = Code
				res.unterminated = append(res.unterminated, line)
				inString = false
				escapeNext = false
			case escapeNext:
				res.kinds[i] = StringLit
				escapeNext = false
			case c == '\\':
				res.kinds[i] = StringLit
				escapeNext = true
			case c == '"':
				res.kinds[i] = StringLit
				inString = false
			default:
				res.kinds[i] = StringLit
			}
		default:
			switch {
			case c == '/' && next == '/':
				inLineComment = true
				res.kinds[i] = LineComment
			case c == '/' && next == '*':
				mark(i, 2, BlockComment)
				i++
				blockDepth = 1
			case strings.HasPrefix(content[i:], `"""`):
				mark(i, 3, StringLit)
				i += 2
				inMultiline = true
			case c == '"':
				res.kinds[i] = StringLit
				inString = true
			default:
				res.kinds[i] = Code
			}
		}
		if c == '\n' {
			line++
		}
	}
	if inString {
		res.unterminated = append(res.unterminated, line)
	}
	return res
}

// Classify returns the Kind of every byte in content.
func Classify(content string) []Kind {
	return scan(content).kinds
}

// BraceCounts counts '{' and '}' that appear outside strings and comments.
func BraceCounts(content string) (open, close int) {
	kinds := scan(content).kinds
	for i := 0; i < len(content); i++ {
		if kinds[i] != Code {
			continue
		}
		switch content[i] {
		case '{':
			open++
		case '}':
			close++
		}
	}
	return open, close
}

// BraceDelta is open minus close braces outside strings and comments.
func BraceDelta(content string) int {
	o, c := BraceCounts(content)
	return o - c
}

// UnterminatedLines returns 0-based line numbers that end inside a
// single-line string literal.
func UnterminatedLines(content string) []int {
	return scan(content).unterminated
}

// CodeOnly blanks out string literal and comment bytes with spaces, keeping
// newlines, so identifier searches do not match text inside them.
func CodeOnly(content string) string {
	kinds := scan(content).kinds
	b := []byte(content)
	for i := range b {
		if kinds[i] != Code && b[i] != '\n' {
			b[i] = ' '
		}
	}
	return string(b)
}
