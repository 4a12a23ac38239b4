package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the aggregate repayment state of a loan, derived from the
// recorded payments against the total payable amount.
type LoanStatus string

const (
	LoanStatusPending     LoanStatus = "PENDING"
	LoanStatusPartialPaid LoanStatus = "PARTIAL_PAID"
	LoanStatusCompleted   LoanStatus = "COMPLETED"
)

// Valid reports whether the status is one of the closed set. Unknown strings
// coming back from storage must not silently pass through.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusPending, LoanStatusPartialPaid, LoanStatusCompleted:
		return true
	}
	return false
}

// Loan represents a loan entity
type Loan struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            string          `json:"loan_id" db:"loan_id"`
	BorrowerID        string          `json:"borrower_id" db:"borrower_id"`
	LenderID          string          `json:"lender_id" db:"lender_id"`
	Principal         decimal.Decimal `json:"principal" db:"principal"`
	InterestRate      decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	TermMonths        int             `json:"term_months" db:"term_months"`
	StartDate         time.Time       `json:"start_date" db:"start_date"`
	TotalPayable      decimal.Decimal `json:"total_payable" db:"total_payable"`
	InstallmentAmount decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	Status            LoanStatus      `json:"status" db:"status"`
	Purpose           string          `json:"purpose" db:"purpose"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	LoanID       string          `json:"loan_id" validate:"required"`
	BorrowerID   string          `json:"borrower_id" validate:"required"`
	LenderID     string          `json:"lender_id" validate:"required"`
	Principal    decimal.Decimal `json:"principal" validate:"decimal_positive"`
	InterestRate decimal.Decimal `json:"interest_rate" validate:"decimal_nonneg"`
	TermMonths   int             `json:"term_months" validate:"required,gt=0"`
	StartDate    time.Time       `json:"start_date" validate:"required"`
	Purpose      string          `json:"purpose"`
}

type CreateLoanResponse struct {
	Loan     *Loan            `json:"loan"`
	Schedule []*ScheduleEntry `json:"schedule"`
}

type OutstandingResponse struct {
	LoanID      string          `json:"loan_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type ScheduleResponse struct {
	LoanID   string           `json:"loan_id"`
	Schedule []*ScheduleEntry `json:"schedule"`
}

// LoanSummary is the dashboard view of a single loan: aggregate totals plus
// the next payment due signal.
type LoanSummary struct {
	LoanID            string          `json:"loan_id"`
	Status            LoanStatus      `json:"status"`
	TotalPayable      decimal.Decimal `json:"total_payable"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Remaining         decimal.Decimal `json:"remaining"`
	PaidInstallments  int             `json:"paid_installments"`
	TermMonths        int             `json:"term_months"`
	NextDue           *ScheduleEntry  `json:"next_due,omitempty"`
}
