package orchestration

import (
	"errors"
	"strings"
	"testing"

	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
	"github.com/moasq/swiftsmith/internal/validation"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantParser string
		wantPaths  []string
	}{
		{
			name:       "direct JSON",
			input:      `{"files":[{"path":"A.swift","content":"struct A {}"}]}`,
			wantParser: "direct_json",
			wantPaths:  []string{"A.swift"},
		},
		{
			name:       "map form sorted by path",
			input:      `{"files":{"Views/B.swift":"struct B {}","A.swift":"struct A {}"}}`,
			wantParser: "direct_json",
			wantPaths:  []string{"A.swift", "Views/B.swift"},
		},
		{
			name:       "bare array with alternate keys",
			input:      `[{"filename":"A.swift","code":"struct A {}"},{"name":"B.swift","content":"struct B {}"}]`,
			wantParser: "direct_json",
			wantPaths:  []string{"A.swift", "B.swift"},
		},
		{
			name:       "fenced JSON inside prose",
			input:      "Sure! Here is the app.\n\n```json\n{\"files\":[{\"path\":\"A.swift\",\"content\":\"struct A {}\"}]}\n```\n\nLet me know.",
			wantParser: "embedded_json",
			wantPaths:  []string{"A.swift"},
		},
		{
			name:       "unfenced JSON inside prose",
			input:      `Result: {"files":[{"path":"./A.swift","content":"struct A {}"}]} done`,
			wantParser: "embedded_json",
			wantPaths:  []string{"A.swift"},
		},
		{
			name:       "labelled swift blocks",
			input:      "**CounterApp.swift**\n```swift\n@main\nstruct CounterApp: App {}\n```\n\n### Views/CounterView.swift\n```swift\nstruct CounterView: View {}\n```\n",
			wantParser: "code_blocks",
			wantPaths:  []string{"CounterApp.swift", "Views/CounterView.swift"},
		},
		{
			name:       "label in first comment",
			input:      "```swift\n// Models/Item.swift\nstruct Item {}\n```",
			wantParser: "code_blocks",
			wantPaths:  []string{"Models/Item.swift"},
		},
		{
			name:       "unlabelled blocks named after declarations",
			input:      "```\nstruct Alpha {}\n```\ntext\n```swift\nlet x = 1\n```",
			wantParser: "code_blocks",
			wantPaths:  []string{"Alpha.swift", "File2.swift"},
		},
		{
			name:       "bare swift",
			input:      "import SwiftUI\n\nstruct Solo: View {\n    var body: some View { Text(\"hi\") }\n}\n",
			wantParser: "code_blocks",
			wantPaths:  []string{"Solo.swift"},
		},
		{
			name:       "duplicate labels get suffixed",
			input:      "A.swift\n```swift\nstruct A {}\n```\nA.swift\n```swift\nstruct A2 {}\n```",
			wantParser: "code_blocks",
			wantPaths:  []string{"A.swift", "A2.swift"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, parser, err := ParseResponse(tt.input, DefaultParsers())
			if err != nil {
				t.Fatalf("ParseResponse() error = %v", err)
			}
			if parser != tt.wantParser {
				t.Errorf("parser = %q, want %q", parser, tt.wantParser)
			}
			got := swift.Paths(files)
			if strings.Join(got, ",") != strings.Join(tt.wantPaths, ",") {
				t.Errorf("paths = %v, want %v", got, tt.wantPaths)
			}
		})
	}
}

func TestParseResponseRejectsUnusableText(t *testing.T) {
	for _, input := range []string{
		"",
		"I can't write that app.",
		`{"answer": 42}`,
		`{"files": []}`,
		`{"files":[{"path":"","content":"struct A {}"},{"path":"B.swift","content":"   "}]}`,
		"```python\nprint('hi')\n```",
	} {
		_, _, err := ParseResponse(input, DefaultParsers())
		if !errors.Is(err, ErrNoFiles) {
			t.Errorf("ParseResponse(%q) error = %v, want ErrNoFiles", input, err)
		}
	}
}

func TestParseResponseCodeBlockContentEndsWithNewline(t *testing.T) {
	files, _, err := ParseResponse("A.swift\n```swift\nstruct A {}   \n\n```", DefaultParsers())
	if err != nil {
		t.Fatal(err)
	}
	if files[0].Content != "struct A {}\n" {
		t.Errorf("content = %q", files[0].Content)
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		input      string
		appType    string
		complexity string
		features   []string
	}{
		{"Create a simple counter app", "utility", ComplexitySimple, nil},
		{"A todo list that saves tasks", "productivity", ComplexitySimple, []string{"persistence"}},
		{"Budget tracker with charts, search and reminders", "finance", ComplexityComplex, []string{"charts", "notifications", "search"}},
		{"Weather app with a detail screen", "weather", ComplexityModerate, []string{"navigation", "networking"}},
		{"something", "utility", ComplexitySimple, nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := Analyze(tt.input)
			if c.AppType != tt.appType || c.Complexity != tt.complexity {
				t.Errorf("Analyze() = %s/%s, want %s/%s", c.AppType, c.Complexity, tt.appType, tt.complexity)
			}
			if strings.Join(c.Features, ",") != strings.Join(tt.features, ",") {
				t.Errorf("features = %v, want %v", c.Features, tt.features)
			}
			if h := c.Hint(); h.AppType != c.AppType || h.Complexity != c.Complexity {
				t.Errorf("Hint() = %+v", h)
			}
		})
	}

	long := strings.Repeat("word ", 61)
	if c := Analyze(long); c.Complexity != ComplexityComplex {
		t.Errorf("61-word description complexity = %s", c.Complexity)
	}
}

func TestFallbackApp(t *testing.T) {
	tests := []struct {
		name     string
		wantMain string
		title    string
	}{
		{"Counter", "CounterApp.swift", "Counter"},
		{"TodoApp", "TodoApp.swift", "TodoApp"},
		{"App", "MyApp.swift", "App"},
		{"my notes", "MyNotesApp.swift", "MyNotes"},
	}
	engine := repair.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := FallbackApp(tt.name)
			if got := swift.Paths(files); len(got) != 2 || got[0] != tt.wantMain || got[1] != "ContentView.swift" {
				t.Fatalf("paths = %v", got)
			}
			if r := validation.Validate(files); !r.Valid() || r.HasIssues() {
				t.Errorf("fallback has issues: %v", r.Issues)
			}
			if !swift.Equal(engine.Repair(files), files) {
				t.Error("repair changed the fallback app")
			}
			if !strings.Contains(files[1].Content, `.navigationTitle("`+tt.title+`")`) {
				t.Errorf("title not substituted:\n%s", files[1].Content)
			}
			if !strings.Contains(files[1].Content, "@State private var count = 0") {
				t.Error("counter state missing")
			}
		})
	}
}
