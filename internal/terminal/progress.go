package terminal

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Phase is the pipeline step currently running.
type Phase int

const (
	PhaseAnalyzing Phase = iota
	PhaseGenerating
	PhaseRepairing
	PhaseValidating
	PhaseBuilding
	PhaseRecovering
	PhaseLaunching
)

func (p Phase) label() string {
	switch p {
	case PhaseAnalyzing:
		return "Analyzing request"
	case PhaseGenerating:
		return "Generating code"
	case PhaseRepairing:
		return "Repairing syntax"
	case PhaseValidating:
		return "Validating structure"
	case PhaseBuilding:
		return "Building"
	case PhaseRecovering:
		return "Recovering from build errors"
	case PhaseLaunching:
		return "Launching"
	default:
		return "Working"
	}
}

// totalPhases counts the numbered phases; recovery and launch are extra.
const totalPhases = 5

func (p Phase) number() int {
	if p > PhaseBuilding {
		return totalPhases
	}
	return int(p) + 1
}

// nextPhase maps a completed pipeline stage to the phase that follows it.
// ok is false for terminal stages.
func nextPhase(stage string) (Phase, bool) {
	switch stage {
	case "REQUIREMENTS_ANALYSIS":
		return PhaseGenerating, true
	case "GENERATION":
		return PhaseRepairing, true
	case "SYNTAX_REPAIR":
		return PhaseValidating, true
	case "STRUCTURAL_VALIDATION":
		return PhaseBuilding, true
	case "BUILD":
		return PhaseRecovering, true
	case "RECOVERY":
		return PhaseLaunching, true
	}
	return 0, false
}

// stageLabels are the activity lines logged for completed stages.
var stageLabels = map[string]string{
	"REQUIREMENTS_ANALYSIS": "Request analyzed",
	"GENERATION":            "Code generated",
	"SYNTAX_REPAIR":         "Syntax repaired",
	"STRUCTURAL_VALIDATION": "Structure validated",
	"BUILD":                 "Build finished",
	"RECOVERY":              "Recovery finished",
	"FALLBACK":              "Using fallback app",
	"DONE":                  "Done",
}

type activity struct {
	text string
	done bool
}

// ProgressDisplay renders pipeline progress. On a terminal it redraws in
// place; otherwise it prints one line per change.
type ProgressDisplay struct {
	mu           sync.Mutex
	phase        Phase
	activities   []activity
	statusText   string
	attempt      int
	ceiling      int
	running      bool
	done         chan struct{}
	startedAt    time.Time
	interactive  bool
	lastRenderID string
}

const (
	maxActivities  = 4
	maxStatusWidth = 70
)

// NewProgressDisplay creates a display starting at phase. ceiling is the
// recovery attempt ceiling shown while recovering.
func NewProgressDisplay(phase Phase, ceiling int) *ProgressDisplay {
	return &ProgressDisplay{
		phase:       phase,
		ceiling:     ceiling,
		startedAt:   time.Now(),
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
		done:        make(chan struct{}),
	}
}

// Start begins the rendering loop.
func (pd *ProgressDisplay) Start() {
	pd.mu.Lock()
	if pd.running {
		pd.mu.Unlock()
		return
	}
	pd.running = true
	pd.mu.Unlock()

	go pd.renderLoop()
}

// Stop stops the progress display and clears the output area.
func (pd *ProgressDisplay) Stop() {
	pd.mu.Lock()
	if !pd.running {
		pd.mu.Unlock()
		return
	}
	pd.running = false
	pd.mu.Unlock()

	close(pd.done)
	if pd.interactive {
		pd.clearDisplay()
	}
}

// StopWithSuccess stops and prints a success message.
func (pd *ProgressDisplay) StopWithSuccess(msg string) {
	pd.Stop()
	fmt.Printf("  %s%s✓%s %s\n", Bold, Green, Reset, msg)
}

// StopWithError stops and prints an error message.
func (pd *ProgressDisplay) StopWithError(msg string) {
	pd.Stop()
	fmt.Printf("  %s%s✗%s %s\n", Bold, Red, Reset, msg)
}

// SetPhase explicitly transitions to a new phase.
func (pd *ProgressDisplay) SetPhase(phase Phase) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.phase = phase
}

// AddActivity adds a new activity line to the display.
func (pd *ProgressDisplay) AddActivity(text string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.addActivity(text)
}

func (pd *ProgressDisplay) addActivity(text string) {
	if len(pd.activities) > 0 {
		pd.activities[len(pd.activities)-1].done = true
	}
	pd.activities = append(pd.activities, activity{text: truncateActivity(text)})
	if len(pd.activities) > maxActivities {
		pd.activities = pd.activities[len(pd.activities)-maxActivities:]
	}
}

// SetStatus sets the dimmed status line.
func (pd *ProgressDisplay) SetStatus(text string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.statusText = extractStatus(text)
}

// OnStage records a completed pipeline stage and moves to the next phase.
func (pd *ProgressDisplay) OnStage(stage, detail string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	label := stageLabels[stage]
	if label == "" {
		label = stage
	}
	if detail != "" {
		label += ": " + detail
	}
	pd.addActivity(label)
	if next, ok := nextPhase(stage); ok {
		// A passing build skips recovery.
		if !(stage == "BUILD" && detail == "") {
			pd.phase = next
		}
	}
}

// OnRecovery shows one recovery state transition.
func (pd *ProgressDisplay) OnRecovery(state string, attempt int, fixes []string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	pd.phase = PhaseRecovering
	pd.attempt = attempt
	switch state {
	case "ANALYZING":
		pd.addActivity(fmt.Sprintf("Attempt %d: analyzing errors", attempt))
	case "REPAIRING":
		if len(fixes) == 0 {
			pd.statusText = "no strategy applied"
		} else {
			pd.statusText = extractStatus(fixes[len(fixes)-1])
		}
	case "REBUILDING":
		pd.addActivity(fmt.Sprintf("Attempt %d: rebuilding", attempt))
	case "SUCCEEDED":
		pd.addActivity("Recovered")
		pd.statusText = ""
	case "EXHAUSTED":
		pd.addActivity("Recovery attempts exhausted")
		pd.statusText = ""
	}
}

func (pd *ProgressDisplay) renderLoop() {
	frame := 0
	for {
		select {
		case <-pd.done:
			return
		default:
			pd.render(frame)
			frame++
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// snapshot copies the state needed to draw one frame.
type snapshot struct {
	phase      Phase
	activities []activity
	status     string
	attempt    int
	ceiling    int
	elapsed    time.Duration
}

func (pd *ProgressDisplay) snapshot() snapshot {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	acts := make([]activity, len(pd.activities))
	copy(acts, pd.activities)
	return snapshot{
		phase:      pd.phase,
		activities: acts,
		status:     pd.statusText,
		attempt:    pd.attempt,
		ceiling:    pd.ceiling,
		elapsed:    time.Since(pd.startedAt),
	}
}

func (pd *ProgressDisplay) render(frame int) {
	s := pd.snapshot()
	if !pd.interactive {
		pd.renderNonInteractive(s)
		return
	}

	spinChar := spinnerFrames[frame%len(spinnerFrames)]
	lines := []string{buildPhaseHeader(s, spinChar)}
	for i, act := range s.activities {
		prefix := "  ├─ "
		if i == len(s.activities)-1 {
			prefix = "  └─ "
		}
		marker, color := spinChar, Cyan
		if act.done {
			marker, color = "✓", Green
		}
		lines = append(lines, fmt.Sprintf("%s%s%s%s %s%s", Dim, prefix, color, marker, Reset+act.text, Reset))
	}
	if s.status != "" {
		lines = append(lines, fmt.Sprintf("  %s%s%s", Dim, s.status, Reset))
	}
	// Fixed height avoids flicker.
	for len(lines) < maxActivities+2 {
		lines = append(lines, "")
	}

	if frame > 0 {
		fmt.Printf("\033[%dA", len(lines))
	}
	for _, line := range lines {
		fmt.Printf("\r\033[K%s\n", line)
	}
}

func (pd *ProgressDisplay) renderNonInteractive(s snapshot) {
	s.elapsed = 0
	header := buildPhaseHeader(s, "•")
	latest := ""
	if n := len(s.activities); n > 0 {
		latest = "  • " + s.activities[n-1].text
	}

	renderID := strings.Join([]string{header, latest, s.status}, "\n")
	pd.mu.Lock()
	if renderID == pd.lastRenderID {
		pd.mu.Unlock()
		return
	}
	pd.lastRenderID = renderID
	pd.mu.Unlock()

	fmt.Println(header)
	if latest != "" {
		fmt.Println(latest)
	}
	if s.status != "" {
		fmt.Println("  " + s.status)
	}
}

// buildPhaseHeader builds the header line. Recovery shows an attempt bar
// instead of the phase number.
func buildPhaseHeader(s snapshot, spinChar string) string {
	var sb strings.Builder
	sb.WriteString("  ")
	if s.phase == PhaseRecovering {
		fmt.Fprintf(&sb, "%s%s %s...%s", Yellow, spinChar, s.phase.label(), Reset)
		if s.ceiling > 0 && s.attempt > 0 {
			sb.WriteString("  ")
			sb.WriteString(buildProgressBar(s.attempt, s.ceiling))
			fmt.Fprintf(&sb, " %sattempt %d/%d%s", Dim, s.attempt, s.ceiling, Reset)
		}
	} else {
		fmt.Fprintf(&sb, "%sStep %d/%d:%s %s%s %s...%s",
			Dim, s.phase.number(), totalPhases, Reset, Cyan, spinChar, s.phase.label(), Reset)
	}
	if s.elapsed > 0 {
		fmt.Fprintf(&sb, "  %s%s%s", Dim, formatElapsed(s.elapsed), Reset)
	}
	return sb.String()
}

// formatElapsed formats a duration as a compact time string.
func formatElapsed(d time.Duration) string {
	s := int(d.Seconds())
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", s/60, s%60)
}

func (pd *ProgressDisplay) clearDisplay() {
	total := maxActivities + 2
	for i := 0; i < total; i++ {
		fmt.Printf("\033[K\n")
	}
	fmt.Printf("\033[%dA", total)
}

func buildProgressBar(current, total int) string {
	if total <= 0 {
		return ""
	}
	const width = 12
	filled := (current * width) / total
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s[%s]%s", Dim, bar, Reset)
}

func truncateActivity(s string) string {
	const maxWidth = 60
	if len(s) > maxWidth {
		return s[:maxWidth] + "..."
	}
	return s
}

// extractStatus keeps the first sentence of text, truncated to one line.
func extractStatus(text string) string {
	text = strings.TrimSpace(text)
	for i, ch := range text {
		if ch == '\n' || (ch == '.' && (i+1 == len(text) || text[i+1] == ' ')) {
			text = text[:i]
			break
		}
	}
	if len(text) > maxStatusWidth {
		text = text[:maxStatusWidth] + "..."
	}
	return text
}
