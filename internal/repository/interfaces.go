package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lendhub/repayment-engine/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByLoanID retrieves a loan by its loan ID
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// UpdateStatus persists a derived loan status
	UpdateStatus(ctx context.Context, loanID string, status domain.LoanStatus) error

	// ListByStatus retrieves all loans in the given statuses
	ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByLoanID retrieves all payments for a loan, oldest first
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error)

	// GetTotalPaid sums the recorded payment amounts for a loan
	GetTotalPaid(ctx context.Context, loanID string) (decimal.Decimal, error)
}
