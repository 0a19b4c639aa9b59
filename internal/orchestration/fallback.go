package orchestration

import (
	"strings"

	"github.com/moasq/swiftsmith/internal/swift"
)

const fallbackAppTemplate = `import SwiftUI

@main
struct {{TYPE}}: App {
    var body: some Scene {
        WindowGroup {
            ContentView()
        }
    }
}
`

const fallbackContentView = `import SwiftUI

struct ContentView: View {
    @State private var count = 0

    var body: some View {
        NavigationStack {
            VStack(spacing: 24) {
                Text("\(count)")
                    .font(.system(size: 72, weight: .bold, design: .rounded))
                    .monospacedDigit()

                HStack(spacing: 16) {
                    Button {
                        count -= 1
                    } label: {
                        Label("Decrement", systemImage: "minus")
                    }
                    .buttonStyle(.bordered)

                    Button {
                        count += 1
                    } label: {
                        Label("Increment", systemImage: "plus")
                    }
                    .buttonStyle(.borderedProminent)
                }

                Button("Reset") {
                    count = 0
                }
                .disabled(count == 0)
            }
            .padding()
            .navigationTitle("{{TITLE}}")
        }
    }
}
`

// FallbackApp returns the minimal counter app substituted when generation
// or recovery cannot produce a buildable set. It always passes validation
// and the repair engine leaves it unchanged.
func FallbackApp(name string) []swift.File {
	name = appName(name)
	typeName := name
	switch {
	case typeName == "App":
		typeName = "MyApp"
	case !strings.HasSuffix(typeName, "App"):
		typeName += "App"
	}
	return []swift.File{
		{Path: typeName + ".swift", Content: strings.ReplaceAll(fallbackAppTemplate, "{{TYPE}}", typeName)},
		{Path: "ContentView.swift", Content: strings.ReplaceAll(fallbackContentView, "{{TITLE}}", name)},
	}
}
