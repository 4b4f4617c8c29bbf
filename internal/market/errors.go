package market

import (
	"errors"
	"fmt"
)

// ErrorCode classifies trading errors for callers and status reporting
type ErrorCode string

const (
	CodeConfiguration     ErrorCode = "CONFIGURATION_ERROR"
	CodeWalletUnavailable ErrorCode = "WALLET_UNAVAILABLE"
	CodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
	CodeSafetyLimit       ErrorCode = "SAFETY_LIMIT_EXCEEDED"
	CodeNetwork           ErrorCode = "NETWORK_ERROR"
)

// Sentinel errors callers branch on with errors.Is
var (
	// ErrNoEligibleWallet means no wallet passed the type/balance/window
	// filters. Recoverable: callers skip the cycle instead of aborting.
	ErrNoEligibleWallet = errors.New("no eligible wallet")

	// ErrSafetyLimit means the safety gate rejected the action.
	// Recoverable: blocks the specific action only.
	ErrSafetyLimit = errors.New("safety limits exceeded")

	// ErrUnsupportedOperation means the operation is not part of the
	// component's contract (e.g. directional trades on the liquidity
	// strategy). Calling it is a programming error.
	ErrUnsupportedOperation = errors.New("operation not supported")
)

// TradingError tags an underlying error with a classification code and
// the operation that produced it.
type TradingError struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *TradingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *TradingError) Unwrap() error {
	return e.Err
}

// NewError wraps err with a code and operation name
func NewError(code ErrorCode, op string, err error) *TradingError {
	return &TradingError{Code: code, Op: op, Err: err}
}

// Errorf builds a TradingError from a format string
func Errorf(code ErrorCode, op, format string, args ...interface{}) *TradingError {
	return &TradingError{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the ErrorCode from err's chain, or "" if untagged
func CodeOf(err error) ErrorCode {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsRecoverable reports whether err should skip the current cycle rather
// than terminate the running loop.
func IsRecoverable(err error) bool {
	if errors.Is(err, ErrNoEligibleWallet) || errors.Is(err, ErrSafetyLimit) {
		return true
	}
	switch CodeOf(err) {
	case CodeWalletUnavailable, CodeSafetyLimit:
		return true
	}
	return false
}
