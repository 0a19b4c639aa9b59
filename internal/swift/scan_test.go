package swift

import (
	"reflect"
	"strings"
	"testing"
)

func TestBraceCounts(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantOpen  int
		wantClose int
	}{
		{"plain", "struct A { var b: Int { 1 } }", 2, 2},
		{"brace in string", `let s = "{ not code"`, 0, 0},
		{"brace in line comment", "// {\nstruct A {}", 1, 1},
		{"brace in block comment", "/* { /* nested { */ } */\nfunc f() {}", 1, 1},
		{"escaped quote", `let s = "a \" {"` + "\n{", 1, 0},
		{"multiline string", "let s = \"\"\"\n{\n}\n\"\"\"\nstruct A {", 1, 0},
		{"interpolation", `Text("\(count)")` + " }", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, c := BraceCounts(tt.in)
			if o != tt.wantOpen || c != tt.wantClose {
				t.Errorf("BraceCounts(%q) = (%d, %d), want (%d, %d)", tt.in, o, c, tt.wantOpen, tt.wantClose)
			}
		})
	}
}

func TestUnterminatedLines(t *testing.T) {
	in := strings.Join([]string{
		`let a = "ok"`,
		`let b = "broken`,
		`// "quote in comment`,
		`let c = "\"escaped\""`,
		`let d = "also broken`,
	}, "\n")
	got := UnterminatedLines(in)
	want := []int{1, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnterminatedLines() = %v, want %v", got, want)
	}
}

func TestUnterminatedLineDoesNotPoisonRest(t *testing.T) {
	in := "let b = \"broken\nstruct A { }"
	if d := BraceDelta(in); d != 0 {
		t.Errorf("BraceDelta() = %d, want 0", d)
	}
}

func TestCodeOnly(t *testing.T) {
	in := "let x = \"PersistenceController\" // PersistenceController\nlet y = PersistenceController()"
	got := CodeOnly(in)
	if strings.Count(got, "PersistenceController") != 1 {
		t.Errorf("CodeOnly() kept %d identifiers, want 1: %q", strings.Count(got, "PersistenceController"), got)
	}
	if len(got) != len(in) {
		t.Errorf("CodeOnly() changed length: %d != %d", len(got), len(in))
	}
	if strings.Count(got, "\n") != 1 {
		t.Error("CodeOnly() must keep newlines")
	}
}
