package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter       ErrorCode = 100
	ErrCodeInvalidExecutionParams ErrorCode = 101
	ErrCodeInvalidBarSpec         ErrorCode = 102
	ErrCodeInvalidSymbol          ErrorCode = 103
	ErrCodeInvalidOrder           ErrorCode = 104
	ErrCodeInvalidConfiguration   ErrorCode = 105

	// Instrument errors (200-299)
	ErrCodeInstrumentNotFound  ErrorCode = 200
	ErrCodeInstrumentExists    ErrorCode = 201
	ErrCodeNotSynthetic        ErrorCode = 202
	ErrCodeNotRegular          ErrorCode = 203
	ErrCodeIdenticalLegs       ErrorCode = 204
	ErrCodeInstrumentMissingID ErrorCode = 205

	// Feed errors (300-399)
	ErrCodeNotSubscribed   ErrorCode = 300
	ErrCodeMappingExists   ErrorCode = 301
	ErrCodeMappingNotFound ErrorCode = 302

	// Execution errors (500-599)
	ErrCodeInvalidTransition   ErrorCode = 500
	ErrCodeSubmitFailed        ErrorCode = 501
	ErrCodeOrderRejected       ErrorCode = 502
	ErrCodeNoMarketPrice       ErrorCode = 503
	ErrCodeZeroSpreadPrice     ErrorCode = 504
	ErrCodeSpreadOrderNotFound ErrorCode = 505

	// Scenario errors (600-699)
	ErrCodeScenarioParse  ErrorCode = 600
	ErrCodeScenarioConfig ErrorCode = 601

	// Market data errors (700-799)
	ErrCodeStreamFailed          ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeStreamActive          ErrorCode = 702
	ErrCodeStreamSubscribe       ErrorCode = 703
)
