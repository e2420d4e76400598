package pipeline

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/nao1215/politecrawl/internal/model"
)

// Item is one crawl result travelling through the pipeline. Exactly one of
// Page and Failure is set.
type Item struct {
	Page    *model.Page
	Failure *model.Failure
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence for every item.
//
// Design decision: We use an interface rather than function types because:
//  1. It allows steps to carry configuration state
//  2. It provides a Name() method for logging and debugging
type Step interface {
	// Do handles one item. A returned error is logged; whether later steps
	// still see the item depends on WithContinueOnError.
	Do(ctx context.Context, item *Item) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline hands every page and failure of a crawl to a list of steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool

	// now stamps failures.
	now func() time.Time
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running later steps, and later items, when a
// step fails.
//
// Design decision: This option exists because a failing sink (a full disk
// under the database) should not hide results from the other sinks.
// The default stops because a broken sink usually means the run is useless.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithClock replaces the clock used to stamp failures.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps on item.
//
// Returns the first error encountered if continueOnError is false,
// or the joined step errors otherwise.
func (p *Pipeline) Execute(ctx context.Context, item *Item) error {
	var errs []error
	for _, step := range p.steps {
		if err := step.Do(ctx, item); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", itemURL(item),
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run drains seq through the pipeline. Crawl errors become failures;
// any other error from seq (a cancelled context) ends the run and is
// returned.
//
// Example:
//
//	err := p.Run(ctx, collector.All(ctx))
func (p *Pipeline) Run(ctx context.Context, seq iter.Seq2[model.Page, error]) error {
	var stepErrs []error
	for page, err := range seq {
		item := &Item{}
		if err != nil {
			f, ok := model.FailureFromError(err, p.now())
			if !ok {
				return errors.Join(append(stepErrs, err)...)
			}
			item.Failure = f
		} else {
			item.Page = &page
		}

		if err := p.Execute(ctx, item); err != nil {
			if !p.continueOnError {
				return err
			}
			stepErrs = append(stepErrs, err)
		}
	}
	return errors.Join(stepErrs...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

func itemURL(item *Item) string {
	switch {
	case item.Page != nil:
		return item.Page.URL
	case item.Failure != nil && item.Failure.URL != "":
		return item.Failure.URL
	case item.Failure != nil:
		return item.Failure.Host
	default:
		return ""
	}
}
