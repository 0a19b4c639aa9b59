package orchestration

import (
	"context"
	"errors"
	"time"

	"github.com/moasq/swiftsmith/internal/llm"
	"github.com/moasq/swiftsmith/internal/recovery"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/swift"
)

// ErrNoFiles is returned by ParseResponse when no parser could extract a
// file from an LLM response.
var ErrNoFiles = errors.New("no source files in response")

// Stage is a generation pipeline stage.
type Stage string

const (
	StageRequirementsAnalysis Stage = "REQUIREMENTS_ANALYSIS"
	StageGeneration           Stage = "GENERATION"
	StageSyntaxRepair         Stage = "SYNTAX_REPAIR"
	StageStructuralValidation Stage = "STRUCTURAL_VALIDATION"
	StageBuild                Stage = "BUILD"
	StageRecovery             Stage = "RECOVERY"
	StageDone                 Stage = "DONE"
	StageFallback             Stage = "FALLBACK"
)

// Operation names recorded in metadata and history.
const (
	OpGenerate = "generate"
	OpModify   = "modify"
	OpRecover  = "recover"
)

// Metadata is accumulated per request and returned with the files. It is
// observational only.
type Metadata struct {
	RequestID         string         `json:"request_id"`
	Operation         string         `json:"operation"`
	StagesCompleted   []string       `json:"stages_completed"`
	ErrorsEncountered []string       `json:"errors_encountered"`
	HealingApplied    bool           `json:"healing_applied"`
	LLMsUsed          []string       `json:"llms_used"`
	ValidationScore   float64        `json:"validation_score"`
	Success           bool           `json:"success"`
	FallbackUsed      bool           `json:"fallback_used"`
	BuildSkipped      bool           `json:"build_skipped,omitempty"`
	Error             string         `json:"error,omitempty"`
	FixesApplied      []string       `json:"fixes_applied,omitempty"`
	RecoveryAttempts  int            `json:"recovery_attempts"`
	Classification    Classification `json:"classification"`
	Duration          time.Duration  `json:"duration_ns"`
}

// Result is what Generate and Modify return. Files is never empty.
type Result struct {
	AppName  string                `json:"app_name"`
	BundleID string                `json:"bundle_id"`
	Files    []swift.File          `json:"files"`
	Metadata Metadata              `json:"metadata"`
	Build    *service.BuildResult  `json:"build,omitempty"`
	Launch   *service.LaunchResult `json:"launch,omitempty"`
}

// Completer is the LLM router as seen by the orchestrator.
type Completer interface {
	Complete(ctx context.Context, h llm.Hint, prompt string) (llm.Completion, error)
}

// Launcher installs and starts a built app. Failures are warnings.
type Launcher interface {
	InstallAndLaunch(ctx context.Context, appPath, bundleID string) service.LaunchResult
}

// History persists finished requests and recovery transitions.
type History interface {
	RecordGeneration(ctx context.Context, g storage.Generation) (int64, error)
	RecordAttempt(ctx context.Context, a storage.Attempt) error
}

// Event is a progress notification. Recovery is set for recovery state
// transitions; otherwise Stage has just completed.
type Event struct {
	RequestID string
	Stage     Stage
	Detail    string
	Recovery  *recovery.Transition
}
