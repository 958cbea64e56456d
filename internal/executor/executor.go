// Package executor runs generated test cases in parallel browser contexts
// and recovers from broken locators by healing them on the fly.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/log"
	"github.com/v0xg/autoqa/internal/model"
	"github.com/v0xg/autoqa/internal/progress"
)

var (
	// ErrNoWorkers is returned when fewer than one parallel worker is configured
	ErrNoWorkers = errors.New("parallel workers must be at least 1")
	// ErrAssertion marks a failed assert step
	ErrAssertion = errors.New("assertion failed")
	// ErrUnexpectedStatus marks an apiRequest step that got the wrong status
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Config controls one ExecuteTests run
type Config struct {
	ParallelWorkers int
	Healing         bool
	Screenshots     bool // write a PNG after every step
	RecordVideo     bool // assemble step screenshots into a GIF per test
	OutputDir       string

	ActionTimeout     time.Duration // click, fill, select
	HealTimeout       time.Duration // visibility wait per healing candidate
	NavigationTimeout time.Duration // navigate, apiRequest
	IdleTimeout       time.Duration // waitForNavigation, waitForLoadState
}

func (c Config) withDefaults() Config {
	if c.ActionTimeout == 0 {
		c.ActionTimeout = 5 * time.Second
	}
	if c.HealTimeout == 0 {
		c.HealTimeout = 2 * time.Second
	}
	if c.NavigationTimeout == 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 10 * time.Second
	}
	if c.OutputDir == "" {
		c.OutputDir = "autoqa-artifacts"
	}
	return c
}

// HealingSink persists healing events. Failures are logged, never fatal.
type HealingSink interface {
	RecordHealing(ctx context.Context, event model.HealingEvent) error
}

// Options wires the executor's collaborators
type Options struct {
	Logger   *zap.Logger
	Progress progress.Sink
	Healing  HealingSink
}

// Executor runs test cases against contexts of one browser
type Executor struct {
	browser  browser.Browser
	log      *zap.Logger
	progress progress.Sink
	healing  HealingSink
}

// New creates an executor driving b
func New(b browser.Browser, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("executor")
	}
	return &Executor{
		browser:  b,
		log:      logger,
		progress: progress.OrDiscard(opts.Progress),
		healing:  opts.Healing,
	}
}

// Partition splits tests into at most workers contiguous batches of
// ceil(len/workers) tests each
func Partition(tests []model.TestCase, workers int) [][]model.TestCase {
	if workers < 1 || len(tests) == 0 {
		return nil
	}
	size := (len(tests) + workers - 1) / workers
	batches := make([][]model.TestCase, 0, workers)
	for start := 0; start < len(tests); start += size {
		end := min(start+size, len(tests))
		batches = append(batches, tests[start:end])
	}
	return batches
}

// runState is the aggregate shared by all batches of one run
type runState struct {
	mu        sync.Mutex
	total     int
	passed    []model.ExecutionResult
	failed    []model.ExecutionResult
	healed    []model.ExecutionResult
	completed int
}

func (r *runState) add(res model.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch res.Status {
	case model.StatusPassed:
		r.passed = append(r.passed, res)
	case model.StatusHealed:
		r.healed = append(r.healed, res)
	default:
		r.failed = append(r.failed, res)
	}
	r.completed++
}

func (r *runState) update(message, current string) progress.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return progress.Update{
		Progress:    progress.Percent(r.completed, r.total, 99),
		Message:     message,
		Total:       r.total,
		Completed:   r.completed,
		Passed:      len(r.passed),
		Failed:      len(r.failed),
		Healed:      len(r.healed),
		CurrentTest: current,
	}
}

// ExecuteTests runs tests in cfg.ParallelWorkers concurrent batches and
// returns once every batch has finished. Test and batch failures are
// reported in the results or logs; only invalid configuration is an error.
func (e *Executor) ExecuteTests(ctx context.Context, tests []model.TestCase, cfg Config) (*model.ExecutionResults, error) {
	if cfg.ParallelWorkers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, cfg.ParallelWorkers)
	}
	cfg = cfg.withDefaults()
	if cfg.Screenshots || cfg.RecordVideo {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	start := time.Now()
	batches := Partition(tests, cfg.ParallelWorkers)
	run := &runState{total: len(tests)}

	e.log.Info("Executing tests",
		zap.Int("tests", len(tests)),
		zap.Int("batches", len(batches)),
		zap.Bool("healing", cfg.Healing))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(id int, batch []model.TestCase) {
			defer wg.Done()
			e.runBatch(ctx, id, batch, cfg, run)
		}(i, batch)
	}
	wg.Wait()

	results := &model.ExecutionResults{
		Passed:        nonNil(run.passed),
		Failed:        nonNil(run.failed),
		Healed:        nonNil(run.healed),
		TotalDuration: time.Since(start),
	}
	results.Total = len(results.Passed) + len(results.Failed) + len(results.Healed)

	e.log.Info("Execution complete",
		zap.Int("total", results.Total),
		zap.Int("passed", len(results.Passed)),
		zap.Int("healed", len(results.Healed)),
		zap.Int("failed", len(results.Failed)),
		zap.Duration("duration", results.TotalDuration))
	final := run.update("Execution complete", "")
	final.Progress = 100
	e.progress.Report(final)
	return results, nil
}

// runBatch owns one browser context and one page for its whole lifetime.
// Anything that goes wrong at batch level is logged and contained here.
func (e *Executor) runBatch(ctx context.Context, id int, tests []model.TestCase, cfg Config, run *runState) {
	logger := e.log.With(zap.Int("batch", id))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Batch aborted", zap.Any("panic", r))
		}
	}()

	bctx, err := e.browser.NewContext(ctx)
	if err != nil {
		logger.Error("Failed to create browser context", zap.Error(err))
		return
	}
	page, err := bctx.NewPage(ctx)
	if err != nil {
		logger.Error("Failed to open page", zap.Error(err))
		if cerr := bctx.Close(); cerr != nil {
			logger.Error("Failed to close browser context", zap.Error(cerr))
		}
		return
	}
	defer func() {
		if err := multierr.Append(page.Close(), bctx.Close()); err != nil {
			logger.Error("Batch teardown failed", zap.Error(err))
		}
	}()

	for _, tc := range tests {
		e.progress.Report(run.update("Running "+tc.Name, tc.Name))
		res := e.runTest(ctx, page, tc, cfg, logger)
		run.add(res)
	}
}

func nonNil(rs []model.ExecutionResult) []model.ExecutionResult {
	if rs == nil {
		return []model.ExecutionResult{}
	}
	return rs
}
