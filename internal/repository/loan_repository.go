package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lendhub/repayment-engine/internal/domain"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (id, loan_id, borrower_id, lender_id, principal, interest_rate, term_months,
			start_date, total_payable, installment_amount, status, purpose, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.LoanID,
		loan.BorrowerID,
		loan.LenderID,
		loan.Principal,
		loan.InterestRate,
		loan.TermMonths,
		loan.StartDate,
		loan.TotalPayable,
		loan.InstallmentAmount,
		loan.Status,
		loan.Purpose,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		SELECT id, loan_id, borrower_id, lender_id, principal, interest_rate, term_months,
			start_date, total_payable, installment_amount, status, purpose, created_at, updated_at
		FROM loans
		WHERE loan_id = $1
	`

	var loan domain.Loan
	err := r.db.GetContext(ctx, &loan, query, loanID)
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) UpdateStatus(ctx context.Context, loanID string, status domain.LoanStatus) error {
	query := `
		UPDATE loans
		SET status = $2, updated_at = $3
		WHERE loan_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, loanID, status, time.Now())
	return err
}

func (r *loanRepository) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	query := `
		SELECT id, loan_id, borrower_id, lender_id, principal, interest_rate, term_months,
			start_date, total_payable, installment_amount, status, purpose, created_at, updated_at
		FROM loans
		WHERE status = ANY($1)
		ORDER BY created_at
	`

	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	var loans []*domain.Loan
	err := r.db.SelectContext(ctx, &loans, query, pq.Array(values))
	if err != nil {
		return nil, err
	}

	return loans, nil
}
