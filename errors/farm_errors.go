package errors

import (
	stderrors "errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FarmErrorCode represents standardized error codes for farm operations
type FarmErrorCode string

const (
	// General errors
	ErrCodeInternal FarmErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest FarmErrorCode = "invalid_request"
	ErrCodeInvalidAmount  FarmErrorCode = "invalid_amount"
	ErrCodeInvalidAddress FarmErrorCode = "invalid_address"
	ErrCodeUnauthorized   FarmErrorCode = "unauthorized"

	// Business logic errors
	ErrCodeInvalidPool              FarmErrorCode = "invalid_pool"
	ErrCodeDuplicatePool            FarmErrorCode = "duplicate_pool"
	ErrCodeInsufficientStake        FarmErrorCode = "insufficient_stake"
	ErrCodeInsufficientVaultBalance FarmErrorCode = "insufficient_vault_balance"
	ErrCodeAssetTransferFailure     FarmErrorCode = "asset_transfer_failure"
	ErrCodeOverflow                 FarmErrorCode = "arithmetic_overflow"

	// System errors
	ErrCodeServiceStopped FarmErrorCode = "service_stopped"
)

// FarmError represents a standardized farm error
type FarmError struct {
	Code    FarmErrorCode `json:"code"`
	Message string        `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *FarmError) Error() string {
	out, _ := json.Marshal(struct {
		Code    FarmErrorCode `json:"code"`
		Message string        `json:"message"`
	}{e.Code, e.Message})
	return string(out)
}

// Is matches any FarmError carrying the same code, so wrapped and
// re-created errors still satisfy errors.Is against the sentinels below.
func (e *FarmError) Is(target error) bool {
	var fe *FarmError
	if !stderrors.As(target, &fe) {
		return false
	}
	return fe.Code == e.Code
}

func (e *FarmError) Unwrap() error {
	return e.cause
}

// Error message constants
const (
	ErrMsgInvalidRequest           = "Request format is invalid"
	ErrMsgInvalidAmount            = "Amount is invalid"
	ErrMsgInvalidAddress           = "Address is invalid"
	ErrMsgUnauthorized             = "Caller is not allowed to perform this operation"
	ErrMsgInvalidPool              = "Pool does not exist"
	ErrMsgDuplicatePool            = "A pool for this stake asset already exists"
	ErrMsgInsufficientStake        = "Withdraw amount exceeds staked amount"
	ErrMsgInsufficientVaultBalance = "Reward vault cannot cover the payout"
	ErrMsgAssetTransferFailure     = "Asset transfer was rejected"
	ErrMsgOverflow                 = "Arithmetic overflow"
	ErrMsgServiceStopped           = "Farm service is not running"
	ErrMsgInternal                 = "Server error, please try again"
)

var (
	ErrInvalidRequest           = NewError(ErrCodeInvalidRequest, ErrMsgInvalidRequest)
	ErrInvalidAmount            = NewError(ErrCodeInvalidAmount, ErrMsgInvalidAmount)
	ErrInvalidAddress           = NewError(ErrCodeInvalidAddress, ErrMsgInvalidAddress)
	ErrUnauthorized             = NewError(ErrCodeUnauthorized, ErrMsgUnauthorized)
	ErrInvalidPool              = NewError(ErrCodeInvalidPool, ErrMsgInvalidPool)
	ErrDuplicatePool            = NewError(ErrCodeDuplicatePool, ErrMsgDuplicatePool)
	ErrInsufficientStake        = NewError(ErrCodeInsufficientStake, ErrMsgInsufficientStake)
	ErrInsufficientVaultBalance = NewError(ErrCodeInsufficientVaultBalance, ErrMsgInsufficientVaultBalance)
	ErrAssetTransfer            = NewError(ErrCodeAssetTransferFailure, ErrMsgAssetTransferFailure)
	ErrOverflow                 = NewError(ErrCodeOverflow, ErrMsgOverflow)
	ErrServiceStopped           = NewError(ErrCodeServiceStopped, ErrMsgServiceStopped)
)

// NewError creates a new FarmError and returns it as error interface
func NewError(code FarmErrorCode, message string) error {
	return &FarmError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a FarmError with a formatted message.
func Newf(code FarmErrorCode, format string, args ...interface{}) error {
	return &FarmError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a farm code to an underlying error. The cause stays reachable
// through errors.Unwrap.
func Wrap(code FarmErrorCode, cause error, message string) error {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &FarmError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// CodeOf extracts the farm code from err, or ErrCodeInternal when err carries none.
func CodeOf(err error) FarmErrorCode {
	var fe *FarmError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return ErrCodeInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var fe *FarmError
	if stderrors.As(err, &fe) {
		return fe.Message
	}
	return ErrMsgInternal
}
