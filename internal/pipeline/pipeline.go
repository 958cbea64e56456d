// Package pipeline wires discovery, test generation and execution into
// one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/ai"
	"github.com/v0xg/autoqa/internal/apicrawler"
	"github.com/v0xg/autoqa/internal/crawler"
	"github.com/v0xg/autoqa/internal/executor"
	"github.com/v0xg/autoqa/internal/log"
	"github.com/v0xg/autoqa/internal/model"
)

// ResultSink persists the results of a run
type ResultSink interface {
	RecordResults(ctx context.Context, runID string, results *model.ExecutionResults) error
}

// Pipeline holds the stages of a run. Website, API and Results are optional.
type Pipeline struct {
	Website   *crawler.WebsiteCrawler
	API       *apicrawler.APICrawler
	Generator ai.Provider
	Executor  *executor.Executor
	Results   ResultSink
	Logger    *zap.Logger
}

// Request describes one explore run
type Request struct {
	URL        string
	APIBaseURL string // defaults to URL
	Depth      crawler.Depth
	SkipAPI    bool
	MaxTests   int
	Execution  executor.Config
}

// Report is everything a run produced
type Report struct {
	RunID          string                  `json:"runId"`
	ApplicationMap *model.ApplicationMap   `json:"applicationMap"`
	Tests          []model.TestCase        `json:"tests"`
	Results        *model.ExecutionResults `json:"results"`
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Component("pipeline")
}

// Discover builds the application map for url and, unless skipped, its API
func (p *Pipeline) Discover(ctx context.Context, req Request) (*model.ApplicationMap, error) {
	app := &model.ApplicationMap{}

	if p.Website != nil && req.URL != "" {
		site, err := p.Website.Crawl(ctx, req.URL, req.Depth)
		if err != nil {
			return nil, fmt.Errorf("crawl failed: %w", err)
		}
		app.Website = site
	}

	if p.API != nil && !req.SkipAPI {
		base := req.APIBaseURL
		if base == "" {
			base = req.URL
		}
		if base != "" {
			api, err := p.API.Discover(ctx, base)
			if err != nil {
				return nil, fmt.Errorf("api discovery failed: %w", err)
			}
			app.API = api
		}
	}

	if app.Website == nil && app.API == nil {
		return nil, errors.New("nothing to discover: no url given")
	}
	return app, nil
}

// Run discovers the application, generates tests for it and executes them
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if p.Generator == nil || p.Executor == nil {
		return nil, errors.New("pipeline needs a test generator and an executor")
	}
	logger := p.logger()
	report := &Report{RunID: uuid.NewString()}

	app, err := p.Discover(ctx, req)
	if err != nil {
		return nil, err
	}
	report.ApplicationMap = app

	tests, err := p.Generator.GenerateTests(ctx, app, req.MaxTests)
	if err != nil {
		return nil, fmt.Errorf("test generation failed: %w", err)
	}
	report.Tests = tests
	logger.Info("Generated tests", zap.String("run_id", report.RunID), zap.Int("tests", len(tests)))

	results, err := p.Executor.ExecuteTests(ctx, tests, req.Execution)
	if err != nil {
		return nil, err
	}
	report.Results = results

	if p.Results != nil {
		if err := p.Results.RecordResults(ctx, report.RunID, results); err != nil {
			logger.Warn("Failed to store results", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
	return report, nil
}
