package terminal

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"
)

// PickerOption represents an option in the interactive picker.
type PickerOption struct {
	Label string
	Desc  string
}

// key is a decoded keypress the picker reacts to.
type key int

const (
	keyNone key = iota
	keyUp
	keyDown
	keyEnter
	keyCancel
)

// picker holds selection and scroll state independently of the terminal.
type picker struct {
	options  []PickerOption
	selected int
	offset   int
	visible  int
}

func newPicker(options []PickerOption, current string, maxVisible int) *picker {
	p := &picker{options: options, visible: len(options)}
	if maxVisible > 0 && p.visible > maxVisible {
		p.visible = maxVisible
	}
	if p.visible < 1 {
		p.visible = 1
	}
	for i, o := range options {
		if o.Label == current {
			p.selected = i
			break
		}
	}
	p.scroll()
	return p
}

func (p *picker) scroll() {
	if p.selected < p.offset {
		p.offset = p.selected
	} else if p.selected >= p.offset+p.visible {
		p.offset = p.selected - p.visible + 1
	}
}

// press applies k. It returns the chosen label and whether the picker is
// finished; a cancelled picker finishes with "".
func (p *picker) press(k key) (string, bool) {
	switch k {
	case keyUp:
		p.selected = (p.selected - 1 + len(p.options)) % len(p.options)
	case keyDown:
		p.selected = (p.selected + 1) % len(p.options)
	case keyEnter:
		return p.options[p.selected].Label, true
	case keyCancel:
		return "", true
	}
	p.scroll()
	return "", false
}

// lines renders the visible window followed by the hint line.
func (p *picker) lines() []string {
	var out []string
	for i := p.offset; i < p.offset+p.visible && i < len(p.options); i++ {
		o := p.options[i]
		if i == p.selected {
			out = append(out, fmt.Sprintf("  %s%s▸%s %s%-12s%s %s%s%s", Bold, Cyan, Reset, Bold, o.Label, Reset, Dim, o.Desc, Reset))
		} else {
			out = append(out, fmt.Sprintf("    %-12s %s%s%s", o.Label, Dim, o.Desc, Reset))
		}
	}
	hint := "↑↓ navigate  Enter select  q cancel"
	if len(p.options) > p.visible {
		hint = fmt.Sprintf("↑↓ scroll (%d/%d)  Enter select  q cancel", p.selected+1, len(p.options))
	}
	return append(out, fmt.Sprintf("  %s%s%s", Dim, hint, Reset))
}

// decodeKey maps raw input bytes to a key. esc reports a lone Escape byte
// whose follow-up has to be read separately.
func decodeKey(b []byte) (k key, esc bool) {
	if len(b) == 0 {
		return keyNone, false
	}
	switch b[0] {
	case 0x1b:
		if len(b) >= 3 && b[1] == '[' {
			switch b[2] {
			case 'A':
				return keyUp, false
			case 'B':
				return keyDown, false
			}
			return keyNone, false
		}
		return keyNone, len(b) == 1
	case '\r', '\n':
		return keyEnter, false
	case 3, 'q':
		return keyCancel, false
	case 'k':
		return keyUp, false
	case 'j':
		return keyDown, false
	}
	return keyNone, false
}

// Pick shows an interactive picker with arrow key navigation and returns
// the selected label, or "" when cancelled or stdin is not a terminal.
func Pick(title string, options []PickerOption, currentLabel string) string {
	if len(options) == 0 {
		return ""
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ""
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return ""
	}
	defer term.Restore(fd, oldState)

	maxVisible := 0
	if _, h, err := term.GetSize(fd); err == nil && h > 7 {
		maxVisible = h - 4
	}
	p := newPicker(options, currentLabel, maxVisible)

	rawWrite("\033[?25l")
	rawWrite(fmt.Sprintf("\r\n  %s%s%s\r\n", Bold, title, Reset))
	drawn := 0
	draw := func() {
		if drawn > 0 {
			rawWrite(fmt.Sprintf("\033[%dA", drawn))
		}
		lines := p.lines()
		for _, l := range lines {
			rawWrite("\r\033[K" + l + "\r\n")
		}
		drawn = len(lines)
	}
	finish := func(label string) string {
		rawWrite(fmt.Sprintf("\033[%dA", drawn+1))
		for i := 0; i < drawn+1; i++ {
			rawWrite("\r\033[K\r\n")
		}
		rawWrite(fmt.Sprintf("\033[%dA\033[?25h", drawn+1))
		return label
	}

	draw()
	buf := make([]byte, 8)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return finish("")
		}
		in := buf[:n]
		k, esc := decodeKey(in)
		if esc {
			extra := make([]byte, 7)
			m := readWithTimeout(extra, 50*time.Millisecond)
			if m == 0 {
				return finish("")
			}
			k, _ = decodeKey(append([]byte{0x1b}, extra[:m]...))
		}
		if label, done := p.press(k); done {
			return finish(label)
		}
		draw()
	}
}

func rawWrite(s string) {
	os.Stdout.WriteString(s)
}

// readWithTimeout reads from stdin for up to timeout and returns the
// number of bytes read, 0 when nothing arrived.
func readWithTimeout(buf []byte, timeout time.Duration) int {
	fd := int(os.Stdin.Fd())
	syscall.SetNonblock(fd, true)
	defer syscall.SetNonblock(fd, false)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			return n
		}
		if err != nil {
			return 0
		}
		time.Sleep(5 * time.Millisecond)
	}
	return 0
}
