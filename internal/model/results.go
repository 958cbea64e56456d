package model

import "time"

// ExecutionStatus is the outcome of one test case
type ExecutionStatus string

const (
	StatusPassed ExecutionStatus = "passed"
	StatusHealed ExecutionStatus = "healed" // passed, with at least one healed locator
	StatusFailed ExecutionStatus = "failed"
)

// ExecutionResult is the outcome of one executed test case
type ExecutionResult struct {
	TestID      string          `json:"testId"`
	Status      ExecutionStatus `json:"status"`
	Duration    time.Duration   `json:"duration"`
	Error       string          `json:"error,omitempty"`
	Screenshots []string        `json:"screenshots,omitempty"`
	Video       string          `json:"video,omitempty"`
}

// ExecutionResults aggregates a whole run. Entry order across batches is
// not related to input order.
type ExecutionResults struct {
	Total         int               `json:"total"`
	Passed        []ExecutionResult `json:"passed"`
	Failed        []ExecutionResult `json:"failed"`
	Healed        []ExecutionResult `json:"healed"`
	TotalDuration time.Duration     `json:"totalDuration"`
}

// HealingStrategy mirrors the persistence model's strategy enum
type HealingStrategy string

const (
	StrategyFallback   HealingStrategy = "FALLBACK"
	StrategySimilarity HealingStrategy = "SIMILARITY"
	StrategyVisual     HealingStrategy = "VISUAL"
	StrategyHistorical HealingStrategy = "HISTORICAL"
)

// HealingEvent records one successful locator recovery
type HealingEvent struct {
	ID            string          `json:"id"`
	TestCaseID    string          `json:"testCaseId"`
	StepIndex     int             `json:"stepIndex"`
	FailedLocator string          `json:"failedLocator"`
	HealedLocator string          `json:"healedLocator"`
	Strategy      HealingStrategy `json:"strategy"`
	Confidence    float64         `json:"confidence"`
	AutoApplied   bool            `json:"autoApplied"`
	CreatedAt     time.Time       `json:"createdAt"`
}
