package service

import (
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// DeploymentTarget is the minimum iOS version generated apps compile for.
// Modifiers introduced after it are rewritten by the api-version strategy.
const DeploymentTarget = "16.0"

type xcodegenProject struct {
	Name    string                    `yaml:"name"`
	Options xcodegenOptions           `yaml:"options"`
	Targets map[string]xcodegenTarget `yaml:"targets"`
}

type xcodegenOptions struct {
	BundleIDPrefix           string            `yaml:"bundleIdPrefix"`
	DeploymentTarget         map[string]string `yaml:"deploymentTarget"`
	CreateIntermediateGroups bool              `yaml:"createIntermediateGroups"`
	GenerateEmptyDirectories bool              `yaml:"generateEmptyDirectories"`
}

type xcodegenTarget struct {
	Type     string           `yaml:"type"`
	Platform string           `yaml:"platform"`
	Sources  []xcodegenSource `yaml:"sources"`
	Settings xcodegenSettings `yaml:"settings"`
}

type xcodegenSource struct {
	Path string `yaml:"path"`
}

type xcodegenSettings struct {
	Base map[string]string `yaml:"base"`
}

// ProjectYAML renders the xcodegen spec for a single-target iPhone app
// whose sources live in a folder named after the app.
func ProjectYAML(appName, bundleID string) ([]byte, error) {
	if bundleID == "" {
		bundleID = BundleID("", appName)
	}
	prefix := bundleID
	if i := strings.LastIndex(bundleID, "."); i > 0 {
		prefix = bundleID[:i]
	}

	spec := xcodegenProject{
		Name: appName,
		Options: xcodegenOptions{
			BundleIDPrefix:           prefix,
			DeploymentTarget:         map[string]string{"iOS": DeploymentTarget},
			CreateIntermediateGroups: true,
			GenerateEmptyDirectories: true,
		},
		Targets: map[string]xcodegenTarget{
			appName: {
				Type:     "application",
				Platform: "iOS",
				Sources:  []xcodegenSource{{Path: appName}},
				Settings: xcodegenSettings{Base: map[string]string{
					"SWIFT_VERSION":             "5.0",
					"PRODUCT_BUNDLE_IDENTIFIER": bundleID,
					"CURRENT_PROJECT_VERSION":   "1",
					"MARKETING_VERSION":         "1.0",
					"GENERATE_INFOPLIST_FILE":   "YES",
					"TARGETED_DEVICE_FAMILY":    "1",
					"CODE_SIGNING_ALLOWED":      "NO",
					"ENABLE_PREVIEWS":           "YES",

					"INFOPLIST_KEY_UIApplicationSceneManifest_Generation":    "YES",
					"INFOPLIST_KEY_UIApplicationSupportsIndirectInputEvents": "YES",
					"INFOPLIST_KEY_UILaunchScreen_Generation":                "YES",
					"INFOPLIST_KEY_UISupportedInterfaceOrientations_iPhone":  "UIInterfaceOrientationPortrait",
				}},
			},
		},
	}

	out, err := yaml.Marshal(&spec)
	if err != nil {
		return nil, fmt.Errorf("failed to render project.yml: %w", err)
	}
	return out, nil
}

// BundleID builds "<prefix>.<appname>" with both parts reduced to
// lowercase letters and digits. An empty prefix becomes "com.swiftsmith".
func BundleID(prefix, appName string) string {
	var parts []string
	for _, p := range strings.Split(prefix, ".") {
		if s := sanitizeBundleID(p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		parts = []string{"com", "swiftsmith"}
	}
	name := sanitizeBundleID(appName)
	if name == "" {
		name = "app"
	}
	return strings.Join(append(parts, name), ".")
}

func sanitizeBundleID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeToPascalCase turns a free-form name into a Swift type name,
// e.g. "my todo-list" → "MyTodoList". Names starting with a digit get an
// "App" prefix.
func SanitizeToPascalCase(name string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range name {
		if !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "App"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "App" + out
	}
	return out
}
