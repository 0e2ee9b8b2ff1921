package pipeline

import (
	"context"
	"log/slog"

	"github.com/scivid/scivid/internal/artifact"
)

// ProgressFunc is called after each step is verified complete (whether it was
// executed or skipped). completed counts verified steps so far; total is the
// length of this run's step list.
type ProgressFunc func(stepName string, completed, total int)

// Orchestrator runs an ordered step list against one artifact directory,
// skipping any step whose completion check already passes. Re-invoking it on a
// directory with no intervening failure performs zero external calls: every
// check passes and every step is skipped. That idempotence is what makes blind
// re-invocation after a crash safe and cheap.
type Orchestrator struct {
	steps      []Step
	logger     *slog.Logger
	onProgress ProgressFunc
	stopAfter  string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the run logger (defaults to slog.Default).
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithProgress registers a hook invoked as steps complete.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithStopAfter stops the run after the named step (debugging aid).
func WithStopAfter(stepName string) Option {
	return func(o *Orchestrator) { o.stopAfter = stepName }
}

// New creates an Orchestrator for the given step list.
func New(steps []Step, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:  steps,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the steps in order against dir. Each step is skipped if its
// completion check already passes; otherwise its executor runs and the check
// is re-verified. On any failure Run returns a single *PipelineError naming
// the step and performs no further steps. Run never retries; callers may
// simply re-invoke it.
func (o *Orchestrator) Run(ctx context.Context, dir artifact.Dir) error {
	if err := dir.Ensure(); err != nil {
		return &PipelineError{Step: o.stepNameAt(0), Err: err}
	}

	total := len(o.steps)
	for i, step := range o.steps {
		log := o.logger.With("step", step.Name)

		if step.Complete(dir) {
			log.Info("skipping step, already complete")
			o.notify(step.Name, i+1, total)
			if o.stopAfter == step.Name {
				log.Info("stopping after step as requested")
				return nil
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return &PipelineError{Step: step.Name, Err: err}
		}

		log.Info("starting step", "description", step.Description)
		if err := step.Execute(ctx, dir); err != nil {
			log.Error("step failed", "error", err)
			return &PipelineError{Step: step.Name, Err: err}
		}
		if !step.Complete(dir) {
			log.Error("step executed but completion check still fails")
			return &PipelineError{Step: step.Name, Err: ErrIncompleteOutput}
		}

		log.Info("step complete")
		o.notify(step.Name, i+1, total)

		if o.stopAfter == step.Name {
			log.Info("stopping after step as requested")
			return nil
		}
	}

	o.logger.Info("pipeline complete", "output_dir", string(dir))
	return nil
}

// Total returns the number of steps in this run.
func (o *Orchestrator) Total() int { return len(o.steps) }

func (o *Orchestrator) notify(name string, completed, total int) {
	if o.onProgress != nil {
		o.onProgress(name, completed, total)
	}
}

func (o *Orchestrator) stepNameAt(i int) string {
	if i < len(o.steps) {
		return o.steps[i].Name
	}
	return ""
}
