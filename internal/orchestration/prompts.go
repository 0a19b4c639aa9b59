package orchestration

import (
	"fmt"
	"strings"

	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/swift"
)

// coderPrompt is shared by the generate and modify prompts.
const coderPrompt = `You are an expert iOS developer writing SwiftUI for iOS ` + service.DeploymentTarget + `.

RULES:
- Apple frameworks only. No third-party packages, no network services, no API keys.
- Exactly one @main App struct. Every type you reference must be declared in the files you return.
- Use double-quoted string literals. No semicolons.
- Prefer NavigationStack, .foregroundStyle and .navigationTitle.
- Keep state local with @State or a single ObservableObject.

OUTPUT:
Return ONLY a JSON object, no prose:
{"files": [{"path": "RelativePath/File.swift", "content": "<full Swift source>"}]}`

// generatePrompt builds the first-generation prompt.
func generatePrompt(description, appName string, c Classification) string {
	var b strings.Builder
	b.WriteString(coderPrompt)
	b.WriteString("\n\nAPP:\n")
	fmt.Fprintf(&b, "- Name: %s (the @main struct is %sApp)\n", appName, appName)
	fmt.Fprintf(&b, "- Type: %s, complexity: %s\n", c.AppType, c.Complexity)
	if len(c.Features) > 0 {
		fmt.Fprintf(&b, "- Features: %s\n", strings.Join(c.Features, ", "))
	}
	if c.Complexity == ComplexitySimple {
		b.WriteString("- Keep it to two or three files.\n")
	}
	b.WriteString("\nREQUEST:\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n")
	return b.String()
}

// modifyPrompt includes the current files and asks for changed files only.
func modifyPrompt(files []swift.File, request string) string {
	var b strings.Builder
	b.WriteString(coderPrompt)
	b.WriteString("\n\nReturn only files you add or change, each in full. Unchanged files are kept.\n")
	b.WriteString("\nCURRENT FILES:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", f.Path, strings.TrimRight(f.Content, "\n"))
	}
	b.WriteString("\nCHANGE REQUEST:\n")
	b.WriteString(strings.TrimSpace(request))
	b.WriteString("\n")
	return b.String()
}
