package domain

import "fmt"

// The engine reports exactly three failure kinds. All are detected
// synchronously and terminate the run; no partial BacktestResult is ever
// returned alongside one of these.

// ConfigError reports an invalid or unsupported strategy id, interval,
// or parameter value. The API layer maps it to HTTP 400.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// InsufficientDataError reports a price series with fewer bars than the
// strategy's warm-up requires. The API layer maps it to HTTP 422.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: series has %d bars, strategy needs at least %d", e.Have, e.Need)
}

// DataIntegrityError reports a malformed price series: non-monotonic
// timestamps or a bar missing required fields.
type DataIntegrityError struct {
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return "data integrity: " + e.Reason
}
