package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/model"
)

// errorSelectors are the usual places a page reports a failure
const errorSelectors = `.error, .error-message, .alert-danger, .alert-error, [role="alert"], .invalid-feedback, .text-danger`

func (e *Executor) executeStep(ctx context.Context, page browser.Page, tr *testRun, index int, step model.TestStep, cfg Config) error {
	switch step.Action {
	case model.ActionNavigate:
		navCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
		defer cancel()
		if err := page.Navigate(navCtx, step.URL); err != nil {
			return err
		}
		return page.WaitLoadState(navCtx, browser.LoadStateDOMContentLoaded)

	case model.ActionClick, model.ActionFill:
		return e.performWithHealing(ctx, page, tr, index, step, cfg)

	case model.ActionSelect:
		actCtx, cancel := context.WithTimeout(ctx, cfg.ActionTimeout)
		defer cancel()
		return page.Locate(step.Locator).Select(actCtx, step.Value)

	case model.ActionWaitForNavigation:
		idleCtx, cancel := context.WithTimeout(ctx, cfg.IdleTimeout)
		defer cancel()
		// many SPA navigations never reach network idle
		if err := page.WaitLoadState(idleCtx, browser.LoadStateNetworkIdle); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return nil

	case model.ActionWaitForLoadState:
		state, err := loadState(step.State)
		if err != nil {
			return err
		}
		idleCtx, cancel := context.WithTimeout(ctx, cfg.IdleTimeout)
		defer cancel()
		return page.WaitLoadState(idleCtx, state)

	case model.ActionWaitForTimeout:
		return sleep(ctx, time.Duration(step.Timeout)*time.Millisecond)

	case model.ActionAssert:
		return assertPage(ctx, page, step)

	case model.ActionAPIRequest:
		reqCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
		defer cancel()
		method := strings.ToUpper(step.Method)
		if method == "" {
			method = http.MethodGet
		}
		status, err := page.Request(reqCtx, browser.APIRequest{Method: method, URL: step.URL, Data: step.Data})
		if err != nil {
			return err
		}
		if step.ExpectedStatus != 0 && status != step.ExpectedStatus {
			return fmt.Errorf("%w: %s %s returned %d, expected %d", ErrUnexpectedStatus, method, step.URL, status, step.ExpectedStatus)
		}
		return nil

	case model.ActionComment:
		return nil
	}
	return fmt.Errorf("unknown step action %q", step.Action)
}

func loadState(s string) (browser.LoadState, error) {
	switch browser.LoadState(s) {
	case "":
		return browser.LoadStateLoad, nil
	case browser.LoadStateLoad, browser.LoadStateDOMContentLoaded, browser.LoadStateNetworkIdle:
		return browser.LoadState(s), nil
	}
	return "", fmt.Errorf("unknown load state %q", s)
}

func assertPage(ctx context.Context, page browser.Page, step model.TestStep) error {
	switch step.AssertType {
	case model.AssertTitle:
		title, err := page.Title(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(title, step.Expected) {
			return fmt.Errorf("%w: title %q does not contain %q", ErrAssertion, title, step.Expected)
		}
	case model.AssertURL:
		u, err := page.URL(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(u, step.Expected) {
			return fmt.Errorf("%w: url %q does not contain %q", ErrAssertion, u, step.Expected)
		}
	case model.AssertErrorMessage:
		n, err := page.Locate(errorSelectors).Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no error message on page", ErrAssertion)
		}
	default:
		return fmt.Errorf("unknown assert type %q", step.AssertType)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
