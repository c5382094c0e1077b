package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidDateRange     ErrorCode = 102
	ErrCodeInvalidFrequency     ErrorCode = 103
	ErrCodeInvalidWeighting     ErrorCode = 104
	ErrCodeInvalidTransaction   ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Data/Resource errors (200-299)
	ErrCodePriceNotFound         ErrorCode = 200
	ErrCodeFundamentalsNotFound  ErrorCode = 201
	ErrCodeDataSourceUnavailable ErrorCode = 202
	ErrCodeQueryFailed           ErrorCode = 203
	ErrCodeNoDataFound           ErrorCode = 204

	// Universe/Ranking errors (300-399)
	ErrCodeUnknownMetric   ErrorCode = 300
	ErrCodeRankingFailed   ErrorCode = 301
	ErrCodeWeightingFailed ErrorCode = 302

	// Portfolio errors (500-599)
	ErrCodeInsufficientCash      ErrorCode = 500
	ErrCodePositionNotFound      ErrorCode = 501
	ErrCodeInvalidPortfolioState ErrorCode = 502

	// Backtest errors (600-699)
	ErrCodeBacktestNotInitialized ErrorCode = 600
	ErrCodeBacktestNoDatasource   ErrorCode = 601
	ErrCodeBacktestCancelled      ErrorCode = 602
	ErrCodeInvariantViolation     ErrorCode = 603
	ErrCodeLedgerFailed           ErrorCode = 604
	ErrCodeResultWriteFailed      ErrorCode = 605
)
