package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/autoqa/internal/model"
)

type StoreTestSuite struct {
	suite.Suite
	mockDB *sql.DB
	mock   sqlmock.Sqlmock
	store  *PostgresStore
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	var err error
	suite.mockDB, suite.mock, err = sqlmock.New()
	if err != nil {
		suite.T().Fatalf("Failed to create mock database: %v", err)
	}
	suite.store = New(suite.mockDB)
}

func (suite *StoreTestSuite) TearDownTest() {
	if err := suite.mock.ExpectationsWereMet(); err != nil {
		suite.T().Fatalf("There were unfulfilled expectations: %v", err)
	}
}

func (suite *StoreTestSuite) event() model.HealingEvent {
	return model.HealingEvent{
		ID:            "6f1c2d7e-8a59-4c1b-9f0e-2b3c4d5e6f70",
		TestCaseID:    "login",
		StepIndex:     1,
		FailedLocator: "#submit",
		HealedLocator: `[data-testid="submit"]`,
		Strategy:      model.StrategyFallback,
		Confidence:    0.6,
		AutoApplied:   true,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (suite *StoreTestSuite) TestMigrate() {
	suite.mock.ExpectExec("CREATE TABLE IF NOT EXISTS healing_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(suite.T(), suite.store.Migrate(context.Background()))
}

func (suite *StoreTestSuite) TestRecordHealing() {
	ev := suite.event()
	suite.mock.ExpectExec("INSERT INTO healing_events").
		WithArgs(ev.ID, "login", 1, "#submit", `[data-testid="submit"]`, "FALLBACK", 0.6, true, ev.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(suite.T(), suite.store.RecordHealing(context.Background(), ev))
}

func (suite *StoreTestSuite) TestRecordHealingError() {
	suite.mock.ExpectExec("INSERT INTO healing_events").
		WillReturnError(errors.New("connection reset"))

	err := suite.store.RecordHealing(context.Background(), suite.event())
	assert.ErrorContains(suite.T(), err, "connection reset")
}

func (suite *StoreTestSuite) TestRecordResults() {
	results := &model.ExecutionResults{
		Passed: []model.ExecutionResult{{TestID: "a", Status: model.StatusPassed, Duration: 1500 * time.Millisecond}},
		Healed: []model.ExecutionResult{{TestID: "b", Status: model.StatusHealed, Duration: time.Second, Video: "out/b.gif"}},
		Failed: []model.ExecutionResult{{TestID: "c", Status: model.StatusFailed, Error: "boom"}},
	}

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec("INSERT INTO execution_results").
		WithArgs("run-1", "a", "passed", int64(1500), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	suite.mock.ExpectExec("INSERT INTO execution_results").
		WithArgs("run-1", "b", "healed", int64(1000), nil, "out/b.gif").
		WillReturnResult(sqlmock.NewResult(1, 1))
	suite.mock.ExpectExec("INSERT INTO execution_results").
		WithArgs("run-1", "c", "failed", int64(0), "boom", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	suite.mock.ExpectCommit()

	assert.NoError(suite.T(), suite.store.RecordResults(context.Background(), "run-1", results))
}

func (suite *StoreTestSuite) TestRecordResultsRollsBack() {
	results := &model.ExecutionResults{
		Passed: []model.ExecutionResult{{TestID: "a", Status: model.StatusPassed}},
	}

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec("INSERT INTO execution_results").
		WillReturnError(errors.New("duplicate key"))
	suite.mock.ExpectRollback()

	err := suite.store.RecordResults(context.Background(), "run-1", results)
	assert.ErrorContains(suite.T(), err, "duplicate key")
}

func TestLogSink(t *testing.T) {
	sink := LogSink{Logger: zaptest.NewLogger(t)}
	assert.NoError(t, sink.RecordHealing(context.Background(), model.HealingEvent{ID: "x"}))
}
