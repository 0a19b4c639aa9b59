package repair

import (
	"strings"
	"testing"

	"github.com/moasq/swiftsmith/internal/swift"
)

// corpus is a set of messy inputs the engine must handle.
var corpus = []string{
	"import SwiftUI\n\nstruct ContentView: View {\n    var body: some View {\n        Text('Hello')\n        Text(\"World\")\n    }\n}\n",
	"struct A: View {\n    var body: some View {\n        VStack {\n            Text(\"x\");\n        }\n",
	"struct B {\n    let x = 1;\n}\n}\n}\n",
	"// header\n// file\n\nstruct C { let id = UUID() }\n",
	"struct D: View {\n    @State private var n = 0\n    var body: some View {\n        NavigationView {\n            Text(\"\\(n)\").foregroundColor(.red).navigationBarTitle(\"Count\")\n        }\n        .onChange(of: n) { value in print(value) }\n    }\n}",
	"let s = \"{ not a brace\" // }\nstruct E {\n",
	"private ; var a = 1\nif x { } ; else { }\n",
	"let greeting = \"\"Hello\"\nlet name = \"World\"\"\n",
	"ForEach(0..<items.count) { i in Text(\"\\(i)\") }\nForEach([\"a\", \"b\"]) { Text($0) }",
	"/* unterminated comment {\nstruct F {",
	"}}} {",
	"",
}

func TestRepairIsIdempotent(t *testing.T) {
	e := New()
	for _, in := range corpus {
		once := e.RepairContent(in)
		twice := e.RepairContent(once)
		if once != twice {
			t.Errorf("RepairContent not idempotent for %q:\nonce:  %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestRepairBalancesBraces(t *testing.T) {
	e := New()
	for _, in := range corpus {
		if strings.HasPrefix(in, "/*") {
			// An unterminated block comment swallows appended braces.
			continue
		}
		out := e.RepairContent(in)
		if o, c := swift.BraceCounts(out); o != c {
			t.Errorf("RepairContent(%q) braces = %d open / %d close:\n%s", in, o, c, out)
		}
	}
}

func TestQuoteNormalization(t *testing.T) {
	in := "Text('Hello')\nText(\"World\")\n// it's a comment\nText(\"Don't\")"
	got := NormalizeQuotes(in)
	want := "Text(\"Hello\")\nText(\"World\")\n// it's a comment\nText(\"Don't\")"
	if got != want {
		t.Errorf("NormalizeQuotes() = %q, want %q", got, want)
	}
}

func TestCollapseDoubledQuotes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`let a = ""Hello"`, `let a = "Hello"`},
		{`let a = "Hello""`, `let a = "Hello"`},
		{`let a = ""`, `let a = ""`},
		{`let a = ["a", "", "b"]`, `let a = ["a", "", "b"]`},
		{"let a = \"\"\"\nbody\n\"\"\"", "let a = \"\"\"\nbody\n\"\"\""},
	}
	for _, tt := range tests {
		if got := CollapseDoubledQuotes(tt.in); got != tt.want {
			t.Errorf("CollapseDoubledQuotes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripSemicolons(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"end of line", "let x = 1;\nlet y = 2;;", "let x = 1\nlet y = 2"},
		{"before comment", "let x = 1; // note", "let x = 1 // note"},
		{"before else", "if a { b() }; else { c() }", "if a { b() } else { c() }"},
		{"modifier", "private ; var count = 0", "private var count = 0"},
		{"statement separator kept", "a = 1; b = 2", "a = 1; b = 2"},
		{"in string kept", `let s = "a;"`, `let s = "a;"`},
		{"in comment kept", "// done;", "// done;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripSemicolons(tt.in); got != tt.want {
				t.Errorf("StripSemicolons(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInsertImports(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{
			"swiftui at top",
			"struct V: View {}\n",
			"import SwiftUI\n\nstruct V: View {}\n",
		},
		{
			"after header comment",
			"// V.swift\n\nstruct V: View {}\n",
			"// V.swift\n\nimport SwiftUI\n\nstruct V: View {}\n",
		},
		{
			"after existing imports",
			"import Foundation\nstruct V: View {}\n",
			"import Foundation\nimport SwiftUI\nstruct V: View {}\n",
		},
		{
			"foundation satisfied by swiftui",
			"import SwiftUI\nlet id = UUID()\n",
			"import SwiftUI\nlet id = UUID()\n",
		},
		{
			"foundation alone",
			"struct Item { let id = UUID() }\n",
			"import Foundation\n\nstruct Item { let id = UUID() }\n",
		},
		{
			"identifier in string ignored",
			"let s = \"View\"\n",
			"let s = \"View\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InsertImports(tt.in); got != tt.want {
				t.Errorf("InsertImports(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRewriteDeprecated(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`.navigationBarTitle("Home")`, `.navigationTitle("Home")`},
		{`.navigationBarTitle("Home", displayMode: .inline)`, `.navigationTitle("Home").navigationBarTitleDisplayMode(.inline)`},
		{`.foregroundColor(.blue)`, `.foregroundStyle(.blue)`},
		{`.cornerRadius(8)`, `.clipShape(RoundedRectangle(cornerRadius: 8))`},
		{`.onChange(of: count) { newValue in`, `.onChange(of: count) { _, newValue in`},
		{`.edgesIgnoringSafeArea(.all)`, `.ignoresSafeArea()`},
		{`let s = ".foregroundColor("`, `let s = ".foregroundColor("`},
	}
	for _, tt := range tests {
		if got := RewriteDeprecated(tt.in); got != tt.want {
			t.Errorf("RewriteDeprecated(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFixForEachIDs(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`ForEach(0..<items.count) { i in`, `ForEach(0..<items.count, id: \.self) { i in`},
		{`ForEach(["a", "b"]) { s in`, `ForEach(["a", "b"], id: \.self) { s in`},
		{`ForEach(items) { item in`, `ForEach(items) { item in`},
		{`ForEach(0..<5) { i in`, `ForEach(0..<5) { i in`},
	}
	for _, tt := range tests {
		if got := FixForEachIDs(tt.in); got != tt.want {
			t.Errorf("FixForEachIDs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBalanceBraces(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"balanced", "struct A {}\n", "struct A {}\n"},
		{"missing closes", "struct A {\n    func f() {\n", "struct A {\n    func f() {\n}\n}\n"},
		{"extra trailing", "struct A {\n}\n}\n\n}\n", "struct A {\n}\n"},
		{"unmatched close mid-line", "struct A {\n} }", "struct A {\n} "},
		{"brace in string ignored", "let s = \"{\"\n", "let s = \"{\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BalanceBraces(tt.in); got != tt.want {
				t.Errorf("BalanceBraces(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepairSkipsNonSwiftFiles(t *testing.T) {
	files := []swift.File{
		{Path: "Info.plist", Content: "<dict>{"},
		{Path: "ContentView.swift", Content: "struct V: View {"},
	}
	out := New().Repair(files)
	if out[0].Content != files[0].Content {
		t.Errorf("non-Swift file changed: %q", out[0].Content)
	}
	if !strings.Contains(out[1].Content, "import SwiftUI") || swift.BraceDelta(out[1].Content) != 0 {
		t.Errorf("Swift file not repaired: %q", out[1].Content)
	}
	if files[1].Content != "struct V: View {" {
		t.Error("Repair mutated its input")
	}
}

func TestPanickingStepLeavesContent(t *testing.T) {
	e := New(WithSteps(Step{Name: "boom", Apply: func(string) string { panic("boom") }}))
	if got := e.RepairContent("let x = 1"); got != "let x = 1" {
		t.Errorf("RepairContent() = %q, want unchanged", got)
	}
}
