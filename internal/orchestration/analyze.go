package orchestration

import (
	"regexp"
	"sort"
	"strings"

	"github.com/moasq/swiftsmith/internal/llm"
)

// Classification is the advisory reading of a description. It picks the
// prompt wording and provider order and never gates correctness.
type Classification struct {
	AppType    string   `json:"app_type"`
	Complexity string   `json:"complexity"`
	Features   []string `json:"features,omitempty"`
}

// Hint converts the classification for the LLM router.
func (c Classification) Hint() llm.Hint {
	return llm.Hint{AppType: c.AppType, Complexity: c.Complexity}
}

const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

const defaultAppType = "utility"

type keywordRule struct {
	name    string
	pattern *regexp.Regexp
}

func keywords(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)`)
}

// appTypeRules are checked in order; the first match wins.
var appTypeRules = []keywordRule{
	{"game", keywords("game", "puzzle", "quiz", "trivia", "score", "player")},
	{"finance", keywords("budget", "expense", "finance", "money", "spending", "invoice")},
	{"health", keywords("fitness", "workout", "habit", "water", "sleep", "meditation", "calorie")},
	{"productivity", keywords("todo", "to-do", "task", "note", "reminder", "checklist", "journal")},
	{"media", keywords("photo", "music", "video", "gallery", "playlist", "podcast")},
	{"weather", keywords("weather", "forecast", "temperature")},
	{"social", keywords("chat", "social", "friends", "profile", "feed")},
	{defaultAppType, keywords("counter", "timer", "calculator", "converter", "tip", "stopwatch")},
}

var featureRules = []keywordRule{
	{"persistence", keywords("save", "store", "persist", "history", "remember", "offline")},
	{"networking", keywords("api", "fetch", "download", "online", "server", "weather")},
	{"navigation", keywords("tab", "screens", "detail", "settings", "navigate")},
	{"charts", keywords("chart", "graph", "statistics", "stats")},
	{"notifications", keywords("notification", "remind", "alert")},
	{"animation", keywords("animat", "transition", "confetti")},
	{"search", keywords("search", "filter")},
}

// Analyze classifies a description by keyword. Unknown descriptions are a
// moderate utility app.
func Analyze(description string) Classification {
	c := Classification{AppType: defaultAppType}
	for _, r := range appTypeRules {
		if r.pattern.MatchString(description) {
			c.AppType = r.name
			break
		}
	}
	for _, r := range featureRules {
		if r.pattern.MatchString(description) {
			c.Features = append(c.Features, r.name)
		}
	}
	sort.Strings(c.Features)

	words := len(strings.Fields(description))
	switch {
	case len(c.Features) >= 3 || words > 60:
		c.Complexity = ComplexityComplex
	case len(c.Features) <= 1 && words <= 25:
		c.Complexity = ComplexitySimple
	default:
		c.Complexity = ComplexityModerate
	}
	return c
}
