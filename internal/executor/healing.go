package executor

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/locator"
	"github.com/v0xg/autoqa/internal/model"
)

// performWithHealing runs a click or fill. When the locator fails and
// healing is on, the alternatives are tried in order and the first visible
// one that accepts the action wins. Otherwise the original error stands.
func (e *Executor) performWithHealing(ctx context.Context, page browser.Page, tr *testRun, index int, step model.TestStep, cfg Config) error {
	act := func(c context.Context, l browser.Locator) error {
		if step.Action == model.ActionFill {
			return l.Fill(c, step.Value)
		}
		return l.Click(c)
	}

	err := withTimeout(ctx, cfg.ActionTimeout, func(c context.Context) error {
		return act(c, page.Locate(step.Locator))
	})
	if err == nil || !cfg.Healing || ctx.Err() != nil {
		return err
	}

	for rank, candidate := range locator.GenerateAlternatives(step.Locator) {
		l := page.Locate(candidate)
		if werr := withTimeout(ctx, cfg.HealTimeout, l.WaitVisible); werr != nil {
			continue
		}
		if aerr := withTimeout(ctx, cfg.ActionTimeout, func(c context.Context) error { return act(c, l) }); aerr != nil {
			e.log.Debug("Healing candidate rejected action",
				zap.String("candidate", candidate), zap.Error(aerr))
			continue
		}
		tr.healed = true
		e.reportHealing(ctx, tr.test.ID, index, step.Locator, candidate, rank)
		return nil
	}
	return err
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(c)
}

// confidence ranks candidates by position in the fallback list
func confidence(rank int) float64 {
	c := 0.8 - 0.1*float64(rank)
	return math.Max(math.Round(c*100)/100, 0.5)
}

func (e *Executor) reportHealing(ctx context.Context, testID string, step int, failed, healed string, rank int) {
	event := model.HealingEvent{
		ID:            uuid.NewString(),
		TestCaseID:    testID,
		StepIndex:     step,
		FailedLocator: failed,
		HealedLocator: healed,
		Strategy:      model.StrategyFallback,
		Confidence:    confidence(rank),
		AutoApplied:   true,
		CreatedAt:     time.Now().UTC(),
	}
	e.log.Info("Healed locator",
		zap.String("test", testID),
		zap.Int("step", step),
		zap.String("failed", failed),
		zap.String("healed", healed),
		zap.Float64("confidence", event.Confidence))

	if e.healing == nil {
		return
	}
	if err := e.healing.RecordHealing(ctx, event); err != nil {
		e.log.Warn("Failed to record healing event", zap.String("test", testID), zap.Error(err))
	}
}
