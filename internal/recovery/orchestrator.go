// Package recovery drives repeated targeted repairs against a build
// function until the build passes or the attempt ceiling for the current
// error fingerprint is reached.
package recovery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/strategies"
	"github.com/moasq/swiftsmith/internal/swift"
)

// DefaultCeiling is the number of attempts allowed per fingerprint.
const DefaultCeiling = 3

// State is a recovery state machine state.
type State string

const (
	Analyzing  State = "ANALYZING"
	Repairing  State = "REPAIRING"
	Rebuilding State = "REBUILDING"
	Succeeded  State = "SUCCEEDED"
	Retrying   State = "RETRYING"
	Exhausted  State = "EXHAUSTED"
)

// BuildFunc builds a file set. A non-nil error is an infrastructure failure
// (tool missing, timeout); its text is classified like any compiler error.
type BuildFunc func(ctx context.Context, files []swift.File) (service.BuildResult, error)

// Transition is one state change, reported to the Observer.
type Transition struct {
	State       State    `json:"state"`
	Fingerprint string   `json:"fingerprint"`
	Attempt     int      `json:"attempt"`
	Categories  []string `json:"categories,omitempty"`
	Fixes       []string `json:"fixes,omitempty"`
}

// Observer receives every transition in order.
type Observer func(Transition)

// Outcome is the result of Recover. It never carries an error: exhaustion is
// reported as State == Exhausted with Success == false.
type Outcome struct {
	swift.RepairResult
	State        State                `json:"state"`
	Attempts     int                  `json:"attempts"`
	Fingerprints []string             `json:"fingerprints"`
	Trace        []Transition         `json:"trace"`
	Build        *service.BuildResult `json:"build,omitempty"`
}

// Orchestrator applies strategies in priority order between builds.
type Orchestrator struct {
	strategies []strategies.Strategy
	store      AttemptStore
	ceiling    int
	logger     zerolog.Logger
	observer   Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithStrategies(s ...strategies.Strategy) Option {
	return func(o *Orchestrator) { o.strategies = s }
}

func WithStore(s AttemptStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

func WithCeiling(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.ceiling = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// New returns an Orchestrator with the default strategies, a fresh memory
// store and the default ceiling.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		strategies: strategies.Default(),
		store:      NewMemoryStore(),
		ceiling:    DefaultCeiling,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session returns a copy of o bound to store, so one generation request
// can count attempts separately from others.
func (o *Orchestrator) Session(store AttemptStore) *Orchestrator {
	cp := *o
	cp.store = store
	return &cp
}

// Observe returns a copy of o that also reports transitions to fn, after
// any observer already configured.
func (o *Orchestrator) Observe(fn Observer) *Orchestrator {
	cp := *o
	if prev := o.observer; prev != nil && fn != nil {
		cp.observer = func(t Transition) {
			prev(t)
			fn(t)
		}
	} else if fn != nil {
		cp.observer = fn
	}
	return &cp
}

// Ceiling returns the per-fingerprint attempt limit.
func (o *Orchestrator) Ceiling() int { return o.ceiling }

// Store returns the attempt store in use.
func (o *Orchestrator) Store() AttemptStore { return o.store }

// Recover runs ANALYZING → REPAIRING → REBUILDING until the build succeeds
// or the current fingerprint has used up its attempts.
func (o *Orchestrator) Recover(ctx context.Context, rawErrors []string, files []swift.File, build BuildFunc) Outcome {
	out := Outcome{}
	current := swift.Clone(files)
	errs := rawErrors
	var fixes []string

	// Fingerprints can alternate between a few sets without ever repeating
	// enough to hit the ceiling on one of them; bound the total as well.
	maxIterations := o.ceiling * 8

	emit := func(t Transition) {
		out.Trace = append(out.Trace, t)
		out.State = t.State
		if o.observer != nil {
			o.observer(t)
		}
	}
	finish := func(success bool, msg string) Outcome {
		out.RepairResult = swift.RepairResult{
			Success:      success,
			Files:        current,
			FixesApplied: fixes,
			Message:      msg,
		}
		return out
	}

	for iter := 0; ; iter++ {
		cat := diagnostics.Classify(errs)
		fp := diagnostics.Fingerprint(cat)
		names := categoryNames(cat)
		out.Fingerprints = append(out.Fingerprints, fp)

		if err := ctx.Err(); err != nil {
			emit(Transition{State: Exhausted, Fingerprint: fp, Attempt: o.store.Count(fp), Categories: names})
			return finish(false, fmt.Sprintf("recovery cancelled: %v", err))
		}

		attempt, ok := o.store.Acquire(fp, o.ceiling)
		if !ok || iter >= maxIterations {
			emit(Transition{State: Exhausted, Fingerprint: fp, Attempt: attempt, Categories: names})
			o.logger.Warn().Str("fingerprint", fp).Int("attempt", attempt).Str("errors", cat.Summary()).Msg("recovery attempts exhausted")
			return finish(false, fmt.Sprintf("recovery attempts exhausted for %s (fingerprint %s, %d attempts)", cat.Summary(), fp, attempt))
		}
		out.Attempts++

		emit(Transition{State: Analyzing, Fingerprint: fp, Attempt: attempt, Categories: names})
		o.logger.Info().Str("fingerprint", fp).Int("attempt", attempt).Str("errors", cat.Summary()).Msg("analyzing build errors")

		var applied []string
		for _, s := range o.strategies {
			if !strategies.Applies(s, cat) {
				continue
			}
			res := attemptSafely(s, cat, current)
			if !res.Success {
				o.logger.Debug().Str("strategy", s.Name()).Str("reason", res.Message).Msg("strategy did not apply")
				continue
			}
			current = res.Files
			applied = append(applied, res.FixesApplied...)
		}
		fixes = append(fixes, applied...)
		emit(Transition{State: Repairing, Fingerprint: fp, Attempt: attempt, Categories: names, Fixes: applied})

		if len(applied) == 0 {
			// Files are unchanged since the build that produced errs, so a
			// rebuild would report the same errors.
			emit(Transition{State: Retrying, Fingerprint: fp, Attempt: attempt, Categories: names})
			continue
		}

		emit(Transition{State: Rebuilding, Fingerprint: fp, Attempt: attempt, Categories: names})
		res, err := build(ctx, current)
		if err != nil {
			res.Success = false
			res.Errors = append(res.Errors, err.Error())
		}
		out.Build = &res
		if res.Success {
			emit(Transition{State: Succeeded, Fingerprint: fp, Attempt: attempt, Categories: names})
			o.logger.Info().Int("attempts", out.Attempts).Int("fixes", len(fixes)).Msg("recovery succeeded")
			return finish(true, "build succeeded after recovery")
		}
		if len(res.Errors) == 0 {
			res.Errors = []string{"build failed without diagnostics"}
		}
		errs = res.Errors
		emit(Transition{State: Retrying, Fingerprint: fp, Attempt: attempt, Categories: names})
	}
}

// attemptSafely runs one strategy, turning a panic into a non-success.
func attemptSafely(s strategies.Strategy, cat diagnostics.Categorized, files []swift.File) (res swift.RepairResult) {
	defer func() {
		if r := recover(); r != nil {
			res = swift.Failed(files, fmt.Sprintf("strategy %s panicked: %v", s.Name(), r))
		}
	}()
	return s.Attempt(cat.All(), files, cat)
}

func categoryNames(cat diagnostics.Categorized) []string {
	cats := cat.Categories()
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}
