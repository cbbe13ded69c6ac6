package extract

import "fmt"

// ErrQueryExecution represents errors that occur during metadata query
// execution. These are considered transient and eligible for retry.
type ErrQueryExecution struct {
	Msg string
	Err error
}

func (e *ErrQueryExecution) Error() string {
	return fmt.Sprintf("query execution error: %s: %v", e.Msg, e.Err)
}

func (e *ErrQueryExecution) Unwrap() error {
	return e.Err
}

// ErrCancelled represents errors when an operation is cancelled.
type ErrCancelled struct {
	Msg string
	Err error
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("operation cancelled: %s: %v", e.Msg, e.Err)
}

func (e *ErrCancelled) Unwrap() error {
	return e.Err
}
