// Package orchestration runs the generate → repair → validate → build →
// recover pipeline for one request at a time.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/llm"
	"github.com/moasq/swiftsmith/internal/metrics"
	"github.com/moasq/swiftsmith/internal/recovery"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/swift"
	"github.com/moasq/swiftsmith/internal/validation"
)

// DefaultBundlePrefix is used when no bundle ID prefix is configured.
const DefaultBundlePrefix = "com.swiftsmith"

// Orchestrator coordinates the LLM, the repair layers and the build
// service. It is safe for concurrent requests; each request gets its own
// attempt store except RecoverFromBuildErrors, which shares one.
type Orchestrator struct {
	llm          Completer
	engine       *repair.Engine
	builder      service.Builder
	launcher     Launcher
	recovery     *recovery.Orchestrator
	metrics      *metrics.Tracker
	history      History
	parsers      []ResponseParser
	bundlePrefix string
	progress     func(Event)
	logger       zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBuilder sets the build service. Without one, builds are skipped and
// structural validation decides success.
func WithBuilder(b service.Builder) Option {
	return func(o *Orchestrator) { o.builder = b }
}

// WithLauncher launches successful builds in the simulator.
func WithLauncher(l Launcher) Option {
	return func(o *Orchestrator) { o.launcher = l }
}

func WithRecovery(r *recovery.Orchestrator) Option {
	return func(o *Orchestrator) { o.recovery = r }
}

func WithEngine(e *repair.Engine) Option {
	return func(o *Orchestrator) { o.engine = e }
}

func WithMetrics(t *metrics.Tracker) Option {
	return func(o *Orchestrator) { o.metrics = t }
}

func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

func WithParsers(p ...ResponseParser) Option {
	return func(o *Orchestrator) { o.parsers = p }
}

func WithBundlePrefix(prefix string) Option {
	return func(o *Orchestrator) {
		if prefix != "" {
			o.bundlePrefix = prefix
		}
	}
}

// WithProgress receives stage and recovery events as they happen. fn is
// called on the request goroutine and must not block.
func WithProgress(fn func(Event)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator around an LLM completer.
func New(completer Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:          completer,
		engine:       repair.New(),
		recovery:     recovery.New(),
		metrics:      metrics.NewTracker(),
		parsers:      DefaultParsers(),
		bundlePrefix: DefaultBundlePrefix,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Metrics returns the process-wide counters.
func (o *Orchestrator) Metrics() *metrics.Tracker { return o.metrics }

// run is the mutable state of one request.
type run struct {
	meta     Metadata
	appName  string
	bundleID string
	input    string
	start    time.Time
	notify   func(Event)
	log      zerolog.Logger
}

func (o *Orchestrator) newRun(op, name, input string) *run {
	id := uuid.NewString()
	return &run{
		meta: Metadata{
			RequestID:         id,
			Operation:         op,
			StagesCompleted:   []string{},
			ErrorsEncountered: []string{},
			LLMsUsed:          []string{},
		},
		appName:  name,
		bundleID: service.BundleID(o.bundlePrefix, name),
		input:    input,
		start:    time.Now(),
		notify:   o.progress,
		log:      o.logger.With().Str("request_id", id).Str("op", op).Str("app", name).Logger(),
	}
}

func (r *run) stage(s Stage) {
	r.stageDetail(s, "")
}

func (r *run) stageDetail(s Stage, detail string) {
	r.meta.StagesCompleted = append(r.meta.StagesCompleted, string(s))
	r.log.Debug().Str("stage", string(s)).Msg("stage completed")
	r.emit(Event{RequestID: r.meta.RequestID, Stage: s, Detail: detail})
}

func (r *run) emit(e Event) {
	if r.notify != nil {
		r.notify(e)
	}
}

func (r *run) addErrors(msgs ...string) {
	r.meta.ErrorsEncountered = append(r.meta.ErrorsEncountered, msgs...)
}

func (r *run) healed(fixes []string) {
	if len(fixes) == 0 {
		return
	}
	r.meta.HealingApplied = true
	r.meta.FixesApplied = append(r.meta.FixesApplied, fixes...)
}

// Generate turns a description into an app. It never fails: when nothing
// usable comes back the result carries the fallback app and
// Metadata.Success is false.
func (o *Orchestrator) Generate(ctx context.Context, description, name string) (res Result) {
	if strings.TrimSpace(name) == "" {
		name = "App"
	}
	r := o.newRun(OpGenerate, appName(name), description)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Msg("generate panicked")
			res = o.fallback(r, fmt.Errorf("internal error: %v", p))
		}
		o.finish(ctx, r, &res)
	}()

	r.meta.Classification = Analyze(description)
	r.stage(StageRequirementsAnalysis)
	r.log.Info().
		Str("app_type", r.meta.Classification.AppType).
		Str("complexity", r.meta.Classification.Complexity).
		Msg("request analyzed")

	files, err := o.complete(ctx, r, generatePrompt(description, r.appName, r.meta.Classification))
	if err != nil {
		return o.fallback(r, err)
	}
	r.stage(StageGeneration)
	return o.pipeline(ctx, r, files)
}

// Modify applies a change request to an existing file set. Response files
// replace existing files with the same path. When the response has no
// files the existing set goes through the pipeline unchanged and the
// result is marked unsuccessful.
func (o *Orchestrator) Modify(ctx context.Context, existing []swift.File, request string) (res Result) {
	r := o.newRun(OpModify, AppNameFromFiles(existing), request)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Msg("modify panicked")
			res = o.fallback(r, fmt.Errorf("internal error: %v", p))
		}
		o.finish(ctx, r, &res)
	}()

	r.meta.Classification = Analyze(request)
	r.stage(StageRequirementsAnalysis)

	base := swift.Clone(existing)
	updates, err := o.complete(ctx, r, modifyPrompt(base, request))
	if err != nil {
		if len(base) == 0 {
			return o.fallback(r, err)
		}
		r.log.Warn().Err(err).Msg("modification produced no files, keeping existing set")
		r.addErrors(err.Error())
		res = o.pipeline(ctx, r, base)
		r.meta.Success = false
		if r.meta.Error == "" {
			r.meta.Error = err.Error()
		}
		return res
	}
	r.stage(StageGeneration)
	return o.pipeline(ctx, r, swift.Merge(base, updates))
}

// RecoverFromBuildErrors runs the recovery loop on a caller's file set.
// Attempts are counted in the orchestrator's shared store, so repeating the
// same failing call stops after the ceiling.
func (o *Orchestrator) RecoverFromBuildErrors(ctx context.Context, errs []string, files []swift.File) swift.RepairResult {
	return o.Recover(ctx, errs, files).RepairResult
}

// Recover is RecoverFromBuildErrors with the full state trace.
func (o *Orchestrator) Recover(ctx context.Context, errs []string, files []swift.File) (out recovery.Outcome) {
	r := o.newRun(OpRecover, AppNameFromFiles(files), strings.Join(errs, "\n"))
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Msg("recover panicked")
			out = recovery.Outcome{
				RepairResult: swift.Failed(files, fmt.Sprintf("internal error: %v", p)),
				State:        recovery.Exhausted,
			}
		}
		r.meta.Success = out.Success
		r.meta.RecoveryAttempts = out.Attempts
		r.healed(out.FixesApplied)
		if !out.Success {
			r.meta.Error = out.Message
		}
		o.metrics.Recovery(out.Success)
		o.record(ctx, r, len(out.Files))
	}()

	r.addErrors(errs...)
	build := staticBuild
	if o.builder != nil {
		build = o.buildFunc(r)
	}
	out = o.recovery.Observe(o.observer(ctx, r)).Recover(ctx, errs, files, build)
	r.stage(StageRecovery)
	o.release(r, out.Build)
	return out
}

// complete asks the LLM and parses its answer into files.
func (o *Orchestrator) complete(ctx context.Context, r *run, prompt string) ([]swift.File, error) {
	if o.llm == nil {
		return nil, llm.ErrNoProvider
	}
	c, err := o.llm.Complete(ctx, r.meta.Classification.Hint(), prompt)
	r.meta.LLMsUsed = append(r.meta.LLMsUsed, c.Tried...)
	for _, p := range c.Tried {
		o.metrics.Provider(p)
	}
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	files, parser, err := ParseResponse(c.Text, o.parsers)
	if err != nil {
		return nil, err
	}
	r.log.Info().Str("provider", c.Provider).Str("parser", parser).Int("files", len(files)).Msg("response parsed")
	return files, nil
}

// pipeline runs SYNTAX_REPAIR → STRUCTURAL_VALIDATION → BUILD → RECOVERY.
func (o *Orchestrator) pipeline(ctx context.Context, r *run, files []swift.File) Result {
	repaired := make([]swift.File, len(files))
	for i, f := range files {
		var fixes []string
		repaired[i], fixes = o.engine.RepairFile(f)
		r.healed(fixes)
	}
	files = repaired
	r.stage(StageSyntaxRepair)

	report := validation.Validate(files)
	if !report.Valid() {
		r.addErrors(issueStrings(report.Critical())...)
		fixed, fixes := validation.Fix(files, o.engine)
		r.healed(fixes)
		report = validation.Validate(fixed)
		if !report.Valid() {
			return o.fallback(r, fmt.Errorf("structural validation failed: %s", strings.Join(issueStrings(report.Critical()), "; ")))
		}
		files = fixed
	}
	r.meta.ValidationScore = report.Score()
	r.stage(StageStructuralValidation)

	if o.builder == nil {
		r.meta.BuildSkipped = true
		return o.done(ctx, r, files, nil)
	}

	build := o.buildFunc(r)
	res, err := build(ctx, files)
	if errors.Is(err, service.ErrToolMissing) {
		r.log.Warn().Err(err).Msg("build tools unavailable, skipping build")
		r.meta.BuildSkipped = true
		r.addErrors(err.Error())
		return o.done(ctx, r, files, nil)
	}
	if err != nil {
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
	}
	if res.Success {
		r.stage(StageBuild)
		return o.done(ctx, r, files, &res)
	}
	r.stageDetail(StageBuild, fmt.Sprintf("%d errors", len(res.Errors)))
	r.addErrors(res.Errors...)
	r.log.Info().Int("errors", len(res.Errors)).Msg("build failed, entering recovery")

	rec := o.recovery.Session(recovery.NewMemoryStore()).Observe(o.observer(ctx, r))
	out := rec.Recover(ctx, res.Errors, files, build)
	o.metrics.Recovery(out.Success)
	r.meta.RecoveryAttempts += out.Attempts
	r.healed(out.FixesApplied)
	r.stage(StageRecovery)
	if !out.Success {
		if out.Build != nil {
			r.addErrors(out.Build.Errors...)
		}
		return o.fallback(r, errors.New(out.Message))
	}
	return o.done(ctx, r, out.Files, out.Build)
}

func (o *Orchestrator) buildFunc(r *run) recovery.BuildFunc {
	return func(ctx context.Context, files []swift.File) (service.BuildResult, error) {
		res, err := o.builder.Build(ctx, service.Project{AppName: r.appName, BundleID: r.bundleID, Files: files})
		if err == nil {
			o.metrics.Build(res.Success)
		}
		return res, err
	}
}

// staticBuild stands in for the build service when none is configured. A
// set passes when validation finds nothing critical; critical issues come
// back as compiler-style errors.
func staticBuild(_ context.Context, files []swift.File) (service.BuildResult, error) {
	report := validation.Validate(files)
	res := service.BuildResult{Success: report.Valid()}
	for _, i := range report.Critical() {
		res.Errors = append(res.Errors, i.Diagnostic())
	}
	return res, nil
}

func (o *Orchestrator) done(ctx context.Context, r *run, files []swift.File, build *service.BuildResult) Result {
	r.stage(StageDone)
	r.meta.Success = true
	res := Result{Files: files, Build: build}
	if o.launcher != nil && build != nil && build.AppPath != "" {
		l := o.launcher.InstallAndLaunch(ctx, build.AppPath, r.bundleID)
		res.Launch = &l
		for _, w := range l.Warnings {
			r.log.Warn().Str("warning", w).Msg("simulator launch")
		}
	}
	o.release(r, build)
	return res
}

// releaser is implemented by builders that keep a work directory per
// successful build.
type releaser interface {
	Release(service.BuildResult) error
}

// release drops the build directory once the app has been launched, or
// immediately when no launcher is configured. The result keeps its
// diagnostics but no longer points at an app bundle.
func (o *Orchestrator) release(r *run, build *service.BuildResult) {
	rel, ok := o.builder.(releaser)
	if !ok || build == nil || build.Dir == "" {
		return
	}
	if err := rel.Release(*build); err != nil {
		r.log.Warn().Err(err).Msg("failed to remove build directory")
	}
	build.Dir, build.AppPath = "", ""
}

// fallback substitutes the deterministic template app.
func (o *Orchestrator) fallback(r *run, cause error) Result {
	r.log.Warn().Err(cause).Msg("substituting fallback app")
	r.meta.Success = false
	r.meta.FallbackUsed = true
	r.meta.Error = cause.Error()
	r.addErrors(cause.Error())
	r.stage(StageFallback)
	files := FallbackApp(r.appName)
	r.meta.ValidationScore = validation.Validate(files).Score()
	return Result{Files: files}
}

func (o *Orchestrator) finish(ctx context.Context, r *run, res *Result) {
	res.AppName = r.appName
	res.BundleID = r.bundleID
	o.metrics.Request(r.meta.Success, r.meta.FallbackUsed, time.Since(r.start))
	o.record(ctx, r, len(res.Files))
	res.Metadata = r.meta
	r.log.Info().
		Bool("success", r.meta.Success).
		Bool("fallback", r.meta.FallbackUsed).
		Dur("elapsed", r.meta.Duration).
		Msg("request finished")
}

// record sets the duration and writes the request to history. History
// failures are logged, never returned.
func (o *Orchestrator) record(ctx context.Context, r *run, fileCount int) {
	r.meta.Duration = time.Since(r.start)
	if o.history == nil {
		return
	}
	_, err := o.history.RecordGeneration(context.WithoutCancel(ctx), storage.Generation{
		RequestID:       r.meta.RequestID,
		Operation:       r.meta.Operation,
		AppName:         r.appName,
		Description:     truncateStr(r.input, 2000),
		Success:         r.meta.Success,
		FallbackUsed:    r.meta.FallbackUsed,
		HealingApplied:  r.meta.HealingApplied,
		ValidationScore: r.meta.ValidationScore,
		FileCount:       fileCount,
		Duration:        r.meta.Duration,
		Error:           r.meta.Error,
		Stages:          r.meta.StagesCompleted,
		Providers:       r.meta.LLMsUsed,
		Errors:          r.meta.ErrorsEncountered,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to record generation")
	}
}

// observer reports recovery transitions to the progress callback and
// persists them for this request.
func (o *Orchestrator) observer(ctx context.Context, r *run) recovery.Observer {
	if o.history == nil && r.notify == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	return func(t recovery.Transition) {
		r.emit(Event{RequestID: r.meta.RequestID, Stage: StageRecovery, Recovery: &t})
		if o.history == nil {
			return
		}
		err := o.history.RecordAttempt(ctx, storage.Attempt{
			RequestID:   r.meta.RequestID,
			Fingerprint: t.Fingerprint,
			Attempt:     t.Attempt,
			State:       string(t.State),
			Categories:  t.Categories,
			Fixes:       t.Fixes,
		})
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to record recovery attempt")
		}
	}
}

func issueStrings(issues []validation.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.String()
	}
	return out
}
