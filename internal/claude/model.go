package claude

import "strings"

// MapModelName converts a full model identifier to the CLI alias
// ("claude-sonnet-4-5" → "sonnet"). Unknown names pass through.
func MapModelName(model string) string {
	switch {
	case model == "":
		return ""
	case strings.Contains(model, "haiku"):
		return "haiku"
	case strings.Contains(model, "sonnet"):
		return "sonnet"
	case strings.Contains(model, "opus"):
		return "opus"
	default:
		return model
	}
}
