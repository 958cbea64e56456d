package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/model"
	"github.com/v0xg/autoqa/internal/recording"
)

// testRun is the mutable state of one test case while it executes
type testRun struct {
	test        model.TestCase
	healed      bool
	screenshots []string
	recorder    *recording.Recorder
}

func (e *Executor) runTest(ctx context.Context, page browser.Page, tc model.TestCase, cfg Config, logger *zap.Logger) model.ExecutionResult {
	start := time.Now()
	logger = logger.With(zap.String("test", tc.ID))

	tr := &testRun{test: tc}
	if cfg.RecordVideo {
		tr.recorder = recording.NewRecorder(recording.Options{})
	}

	err := e.runSteps(ctx, page, tr, cfg, logger)

	res := model.ExecutionResult{
		TestID:      tc.ID,
		Duration:    time.Since(start),
		Screenshots: tr.screenshots,
		Video:       e.saveVideo(tr, cfg, logger),
	}
	switch {
	case err != nil:
		res.Status = model.StatusFailed
		res.Error = err.Error()
		logger.Info("Test failed", zap.String("name", tc.Name), zap.Error(err))
	case tr.healed:
		res.Status = model.StatusHealed
		logger.Info("Test passed after healing", zap.String("name", tc.Name))
	default:
		res.Status = model.StatusPassed
		logger.Debug("Test passed", zap.String("name", tc.Name))
	}
	return res
}

func (e *Executor) runSteps(ctx context.Context, page browser.Page, tr *testRun, cfg Config, logger *zap.Logger) error {
	if page.IsClosed() {
		return fmt.Errorf("cannot run test: %w", browser.ErrPageClosed)
	}
	for i, step := range tr.test.Steps {
		if err := e.executeStep(ctx, page, tr, i, step, cfg); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		if cfg.Screenshots || cfg.RecordVideo {
			e.capture(ctx, page, tr, i, cfg, logger)
		}
	}
	return nil
}

// capture takes the post-step screenshot. It never fails the test.
func (e *Executor) capture(ctx context.Context, page browser.Page, tr *testRun, step int, cfg Config, logger *zap.Logger) {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		logger.Debug("Screenshot failed", zap.Int("step", step+1), zap.Error(err))
		return
	}
	if cfg.Screenshots {
		path := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s-%d.png", fileSafe(tr.test.ID), step+1))
		if err := os.WriteFile(path, shot, 0o644); err != nil {
			logger.Debug("Failed to save screenshot", zap.String("path", path), zap.Error(err))
		} else {
			tr.screenshots = append(tr.screenshots, path)
		}
	}
	if tr.recorder != nil {
		if err := tr.recorder.AddPNG(shot); err != nil {
			logger.Debug("Failed to record frame", zap.Int("step", step+1), zap.Error(err))
		}
	}
}

// saveVideo writes whatever frames were recorded, even for failed tests
func (e *Executor) saveVideo(tr *testRun, cfg Config, logger *zap.Logger) string {
	if tr.recorder == nil || tr.recorder.Len() == 0 {
		return ""
	}
	path := filepath.Join(cfg.OutputDir, fileSafe(tr.test.ID)+".gif")
	if err := tr.recorder.Save(path); err != nil {
		logger.Debug("Failed to save recording", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

func fileSafe(id string) string {
	if id == "" {
		return "test"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
