package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	log, err := NewLogger()
	suite.Require().NoError(err)
	suite.NotNil(log.Logger)
	suite.False(log.Core().Enabled(zap.DebugLevel))
}

func (suite *LoggerTestSuite) TestNewDebugLogger() {
	log, err := NewDebugLogger()
	suite.Require().NoError(err)
	suite.True(log.Core().Enabled(zap.DebugLevel))
}

func (suite *LoggerTestSuite) TestSyncNilLogger() {
	log := &Logger{Logger: nil}
	suite.NoError(log.Sync())
}

func (suite *LoggerTestSuite) TestLoggingDoesNotPanic() {
	log, err := NewLogger()
	suite.Require().NoError(err)

	log.Info("backtest started", zap.String("run_id", "test"))
	log.Warn("stale price", zap.Int("lag_days", 45))
	log.Error("query failed")

	// Sync can fail when stdout is not a file, which is fine here.
	_ = log.Sync()
}
