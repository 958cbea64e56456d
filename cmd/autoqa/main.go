package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/ai"
	"github.com/v0xg/autoqa/internal/apicrawler"
	"github.com/v0xg/autoqa/internal/browser"
	"github.com/v0xg/autoqa/internal/browser/chrome"
	"github.com/v0xg/autoqa/internal/browser/static"
	"github.com/v0xg/autoqa/internal/config"
	"github.com/v0xg/autoqa/internal/crawler"
	"github.com/v0xg/autoqa/internal/executor"
	"github.com/v0xg/autoqa/internal/log"
	"github.com/v0xg/autoqa/internal/model"
	"github.com/v0xg/autoqa/internal/pipeline"
	"github.com/v0xg/autoqa/internal/progress"
	"github.com/v0xg/autoqa/internal/store"
)

var (
	configPath  string
	output      string
	driver      string
	timeout     time.Duration
	depth       string
	screenshots bool
	workers     int
	noHeal      bool
	video       bool
	provider    string
	modelName   string
	maxTests    int
	apiBase     string
	skipAPI     bool
	profile     string
	verbose     bool

	cfg *config.Config
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	err := newRootCmd().Execute()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Registering the flags resets their
// package-level values to the defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autoqa",
		Short: "Discover a web app, generate tests for it and run them with self-healing locators",
		Long: `autoqa crawls a website and its API, asks an AI model for end-to-end tests,
and runs them in parallel browser contexts, healing broken locators on the way.

Example:
  autoqa explore https://myapp.com --depth deep --workers 4`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: autoqa.yaml if present)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Write JSON output to this file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Browser driver: chrome, static")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall deadline, e.g. 10m (default: none)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")

	crawlCmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Map the pages, elements and user flows of a website",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}
	crawlCmd.Flags().StringVar(&depth, "depth", "", "Crawl depth: shallow, deep, exhaustive")
	crawlCmd.Flags().BoolVar(&screenshots, "screenshots", false, "Attach a thumbnail to every page")

	discoverCmd := &cobra.Command{
		Use:   "discover <api-base>",
		Short: "Discover API endpoints from specs, page traffic and conventions",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover,
	}

	runCmd := &cobra.Command{
		Use:   "run <tests.json>",
		Short: "Execute test cases from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runTests,
	}

	exploreCmd := &cobra.Command{
		Use:   "explore <url>",
		Short: "Crawl, generate tests with AI and run them",
		Args:  cobra.ExactArgs(1),
		RunE:  runExplore,
	}
	exploreCmd.Flags().StringVar(&depth, "depth", "", "Crawl depth: shallow, deep, exhaustive")
	exploreCmd.Flags().StringVar(&apiBase, "api", "", "API base URL (default: the site URL)")
	exploreCmd.Flags().BoolVar(&skipAPI, "no-api", false, "Skip API discovery")
	exploreCmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai")
	exploreCmd.Flags().StringVar(&modelName, "model", "", "Specific model override")
	exploreCmd.Flags().IntVar(&maxTests, "max-tests", 0, "Maximum number of generated tests")

	for _, c := range []*cobra.Command{runCmd, exploreCmd} {
		c.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel browser contexts")
		c.Flags().BoolVar(&noHeal, "no-heal", false, "Disable locator healing")
		c.Flags().BoolVar(&screenshots, "screenshots", false, "Capture a screenshot after every step")
		c.Flags().BoolVar(&video, "video", false, "Record a GIF per test")
	}

	rootCmd.AddCommand(crawlCmd, discoverCmd, runCmd, exploreCmd)
	return rootCmd
}

// setup loads the config and lets flags override it
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if driver != "" {
		cfg.Driver = driver
	}
	if profile != "" {
		cfg.Browser.ProfileDir = profile
	}
	if depth != "" {
		cfg.Crawl.Depth = depth
	}
	if flags.Changed("screenshots") {
		cfg.Crawl.Screenshots = screenshots
		cfg.Execution.Screenshots = screenshots
	}
	if workers != 0 {
		cfg.Execution.ParallelWorkers = workers
	}
	if noHeal {
		cfg.Execution.Healing = false
	}
	if video {
		cfg.Execution.RecordVideo = true
	}
	if provider != "" {
		cfg.AI.Provider = provider
	}
	if modelName != "" {
		cfg.AI.Model = modelName
	}
	if maxTests != 0 {
		cfg.AI.MaxTests = maxTests
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	return log.Init(cfg.LogLevel)
}

func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(cmd.Context(), timeout)
	}
	return context.WithCancel(cmd.Context())
}

func openBrowser(ctx context.Context) (browser.Browser, error) {
	if cfg.Driver == config.DriverStatic {
		return static.New(static.Options{}), nil
	}
	b, err := chrome.Launch(ctx, chrome.Options{
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		Headless:   cfg.Browser.Headless,
		ProfileDir: cfg.Browser.ProfileDir,
		Bin:        cfg.Browser.Bin,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// printProgress streams updates as "→ [NN%] message" lines on stderr
func printProgress(cmd *cobra.Command) *progress.Stream {
	w := cmd.ErrOrStderr()
	return progress.NewStream(func(u progress.Update) {
		fmt.Fprintf(w, "→ [%3d%%] %s\n", u.Progress, u.Message)
	})
}

func newCrawler(b browser.Browser, sink progress.Sink) *crawler.WebsiteCrawler {
	return crawler.New(b, crawler.Options{
		Screenshots:       cfg.Crawl.Screenshots,
		NavigationTimeout: cfg.Crawl.NavigationTimeout,
		SettleTimeout:     cfg.Crawl.SettleTimeout,
		Progress:          sink,
	})
}

func newAPICrawler(b browser.Browser, sink progress.Sink) *apicrawler.APICrawler {
	return apicrawler.New(b, apicrawler.Options{
		ProbeTimeout:      cfg.API.ProbeTimeout,
		SpecPaths:         cfg.API.SpecPaths,
		ObserveWindow:     cfg.API.ObserveWindow,
		NavigationTimeout: cfg.Crawl.NavigationTimeout,
		Progress:          sink,
	})
}

// sinks picks PostgreSQL when a DSN is configured, the log otherwise
func sinks(ctx context.Context) (executor.HealingSink, pipeline.ResultSink, func(), error) {
	if cfg.Database.DSN == "" {
		return store.LogSink{}, nil, func() {}, nil
	}
	db, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return db, db, func() { _ = db.Close() }, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext(cmd)
	defer cancel()

	b, err := openBrowser(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	stream := printProgress(cmd)
	site, err := newCrawler(b, stream).Crawl(ctx, args[0], crawler.Depth(cfg.Crawl.Depth))
	stream.Close()
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Found %d pages and %d flows\n", len(site.Pages), len(site.UserFlows))
	return writeJSON(cmd, site)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext(cmd)
	defer cancel()

	b, err := openBrowser(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	stream := printProgress(cmd)
	api, err := newAPICrawler(b, stream).Discover(ctx, args[0])
	stream.Close()
	if err != nil {
		return fmt.Errorf("api discovery failed: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Found %d endpoints\n", len(api.Endpoints))
	return writeJSON(cmd, api)
}

func runTests(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read tests: %w", err)
	}
	var tests []model.TestCase
	if err := json.Unmarshal(data, &tests); err != nil {
		return fmt.Errorf("failed to parse tests: %w", err)
	}

	ctx, cancel := runContext(cmd)
	defer cancel()

	healing, results, closeStore, err := sinks(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	b, err := openBrowser(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	stream := printProgress(cmd)
	exec := executor.New(b, executor.Options{Progress: stream, Healing: healing})
	res, err := exec.ExecuteTests(ctx, tests, cfg.ExecutorConfig())
	stream.Close()
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	if results != nil {
		if err := results.RecordResults(ctx, uuid.NewString(), res); err != nil {
			log.GetLogger().Warn("Failed to store results", zap.Error(err))
		}
	}
	printSummary(cmd, res)
	return writeJSON(cmd, res)
}

func runExplore(cmd *cobra.Command, args []string) error {
	ctx, cancel := runContext(cmd)
	defer cancel()

	gen, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Model)
	if err != nil {
		return fmt.Errorf("AI provider init failed: %w", err)
	}

	healing, results, closeStore, err := sinks(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	b, err := openBrowser(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	stream := printProgress(cmd)
	p := &pipeline.Pipeline{
		Website:   newCrawler(b, stream),
		API:       newAPICrawler(b, stream),
		Generator: gen,
		Executor:  executor.New(b, executor.Options{Progress: stream, Healing: healing}),
		Results:   results,
	}
	report, err := p.Run(ctx, pipeline.Request{
		URL:        args[0],
		APIBaseURL: apiBase,
		Depth:      crawler.Depth(cfg.Crawl.Depth),
		SkipAPI:    skipAPI,
		MaxTests:   cfg.AI.MaxTests,
		Execution:  cfg.ExecutorConfig(),
	})
	stream.Close()
	if err != nil {
		return err
	}
	printSummary(cmd, report.Results)
	return writeJSON(cmd, report)
}

func printSummary(cmd *cobra.Command, res *model.ExecutionResults) {
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ %d tests: %d passed, %d failed, %d healed (%.1fs)\n",
		res.Total, len(res.Passed), len(res.Failed), len(res.Healed), res.TotalDuration.Seconds())
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved to %s\n", output)
	return nil
}
