package terminal

import (
	"strings"
	"testing"
)

func options(labels ...string) []PickerOption {
	var out []PickerOption
	for _, l := range labels {
		out = append(out, PickerOption{Label: l, Desc: l + " provider"})
	}
	return out
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    key
		wantEsc bool
	}{
		{"\x1b[A", keyUp, false},
		{"\x1b[B", keyDown, false},
		{"\x1b[C", keyNone, false},
		{"\x1b", keyNone, true},
		{"\r", keyEnter, false},
		{"q", keyCancel, false},
		{"\x03", keyCancel, false},
		{"j", keyDown, false},
		{"x", keyNone, false},
	}
	for _, tt := range tests {
		k, esc := decodeKey([]byte(tt.in))
		if k != tt.want || esc != tt.wantEsc {
			t.Errorf("decodeKey(%q) = %v, %v; want %v, %v", tt.in, k, esc, tt.want, tt.wantEsc)
		}
	}
}

func TestPickerNavigationWraps(t *testing.T) {
	p := newPicker(options("anthropic", "openai", "gemini"), "openai", 0)
	if p.selected != 1 {
		t.Fatalf("initial selection = %d, want 1", p.selected)
	}
	p.press(keyDown)
	p.press(keyDown)
	if p.selected != 0 {
		t.Errorf("selection after wrap = %d, want 0", p.selected)
	}
	p.press(keyUp)
	label, done := p.press(keyEnter)
	if !done || label != "gemini" {
		t.Errorf("press(enter) = %q, %v", label, done)
	}
	if label, done := p.press(keyCancel); !done || label != "" {
		t.Errorf("press(cancel) = %q, %v", label, done)
	}
}

func TestPickerScrollsLongLists(t *testing.T) {
	p := newPicker(options("a", "b", "c", "d", "e"), "", 2)
	for i := 0; i < 3; i++ {
		p.press(keyDown)
	}
	if p.selected != 3 || p.offset != 2 {
		t.Errorf("selected=%d offset=%d, want 3 and 2", p.selected, p.offset)
	}
	lines := p.lines()
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 2 options and a hint", len(lines))
	}
	if !strings.Contains(lines[1], "▸") || !strings.Contains(lines[2], "(4/5)") {
		t.Errorf("lines = %q", lines)
	}
}
