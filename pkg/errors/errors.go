package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidLoanTerms     = errors.New("invalid loan terms")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrLoanAlreadyExists    = errors.New("loan already exists")
	ErrLoanAlreadyCompleted = errors.New("loan is already completed")
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidLoanTerms     = "INVALID_LOAN_TERMS"
	ErrCodeLoanNotFound         = "LOAN_NOT_FOUND"
	ErrCodeLoanAlreadyExists    = "LOAN_ALREADY_EXISTS"
	ErrCodeLoanAlreadyCompleted = "LOAN_ALREADY_COMPLETED"
	ErrCodeInvalidPaymentAmount = "INVALID_PAYMENT_AMOUNT"
	ErrCodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeCacheError           = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapInvalidLoanTerms(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanTerms,
		fmt.Sprintf("Invalid loan terms: %s", reason),
		ErrInvalidLoanTerms,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanAlreadyExists(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		ErrLoanAlreadyExists,
	)
}

func WrapLoanAlreadyCompleted(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyCompleted,
		fmt.Sprintf("Loan with ID %s is already completed", loanID),
		ErrLoanAlreadyCompleted,
	)
}

func WrapInvalidPaymentAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentAmount,
		fmt.Sprintf("Invalid payment amount: %s", amount),
		ErrInvalidPaymentAmount,
	)
}

func WrapInvalidPaymentMethod(method string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidPaymentMethod,
		fmt.Sprintf("Unknown payment method: %s", method),
		ErrInvalidPaymentMethod,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
