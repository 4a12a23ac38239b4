package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lendhub/repayment-engine/internal/domain"
	customError "github.com/lendhub/repayment-engine/pkg/errors"
	"github.com/lendhub/repayment-engine/tests/mocks"
)

var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestService(loanRepo *mocks.MockLoanRepository, paymentRepo *mocks.MockPaymentRepository) *LoanService {
	svc := NewLoanService(loanRepo, paymentRepo, nil, nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func storedLoan(loanID string) *domain.Loan {
	return &domain.Loan{
		ID:                uuid.New(),
		LoanID:            loanID,
		BorrowerID:        "BRW-1",
		LenderID:          "LND-1",
		Principal:         decimal.NewFromInt(10000),
		InterestRate:      decimal.NewFromInt(10),
		TermMonths:        4,
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalPayable:      decimal.NewFromInt(11000),
		InstallmentAmount: decimal.NewFromInt(2750),
		Status:            domain.LoanStatusPending,
	}
}

func TestCreateLoan_Success(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)

	loanID := "LOAN123"
	mockLoanRepo.On("GetByLoanID", mock.Anything, loanID).Return(nil, sql.ErrNoRows)
	mockLoanRepo.On("Create", mock.Anything, mock.MatchedBy(func(loan *domain.Loan) bool {
		return loan.LoanID == loanID && loan.Status == domain.LoanStatusPending
	})).Return(nil)

	request := &domain.CreateLoanRequest{
		LoanID:       loanID,
		BorrowerID:   "BRW-1",
		LenderID:     "LND-1",
		Principal:    decimal.NewFromInt(10000),
		InterestRate: decimal.NewFromInt(10),
		TermMonths:   4,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	loan, entries, err := svc.CreateLoan(context.Background(), request)

	require.NoError(t, err)
	assert.Equal(t, loanID, loan.LoanID)
	assert.True(t, loan.TotalPayable.Equal(decimal.NewFromInt(11000)))
	assert.True(t, loan.InstallmentAmount.Equal(decimal.NewFromInt(2750)))
	require.Len(t, entries, 4)
	for _, entry := range entries {
		assert.Equal(t, domain.EntryStatusUpcoming, entry.Status)
	}

	mockLoanRepo.AssertExpectations(t)
}

func TestCreateLoan_AlreadyExists(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)

	loanID := "LOAN456"
	mockLoanRepo.On("GetByLoanID", mock.Anything, loanID).Return(storedLoan(loanID), nil)

	loan, entries, err := svc.CreateLoan(context.Background(), &domain.CreateLoanRequest{
		LoanID:       loanID,
		Principal:    decimal.NewFromInt(10000),
		InterestRate: decimal.NewFromInt(10),
		TermMonths:   4,
		StartDate:    fixedNow,
	})

	assert.Nil(t, loan)
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, customError.ErrLoanAlreadyExists)
	mockLoanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateLoan_InvalidTerms(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)

	loanID := "LOAN789"
	mockLoanRepo.On("GetByLoanID", mock.Anything, loanID).Return(nil, sql.ErrNoRows)

	loan, entries, err := svc.CreateLoan(context.Background(), &domain.CreateLoanRequest{
		LoanID:       loanID,
		Principal:    decimal.NewFromInt(10000),
		InterestRate: decimal.NewFromInt(10),
		TermMonths:   0,
		StartDate:    fixedNow,
	})

	assert.Nil(t, loan)
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, customError.ErrInvalidLoanTerms)
	mockLoanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRecordPayment_UpdatesLoanStatus(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)

	loanID := "LOAN123"
	loan := storedLoan(loanID)
	mockLoanRepo.On("GetByLoanID", mock.Anything, loanID).Return(loan, nil)

	mockPaymentRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.LoanID == loanID &&
			p.Status == domain.PaymentStatusCompleted &&
			p.Amount.Equal(decimal.NewFromInt(2750))
	})).Return(nil)

	recorded := []*domain.Payment{
		{
			LoanID:   loanID,
			Amount:   decimal.NewFromInt(2750),
			PaidDate: fixedNow,
			Method:   domain.PaymentMethodBankTransfer,
			Status:   domain.PaymentStatusCompleted,
		},
	}
	mockPaymentRepo.On("GetByLoanID", mock.Anything, loanID).Return(recorded, nil)
	mockLoanRepo.On("UpdateStatus", mock.Anything, loanID, domain.LoanStatusPartialPaid).Return(nil)

	payment, status, err := svc.RecordPayment(context.Background(), loanID, &domain.RecordPaymentRequest{
		Amount: decimal.NewFromInt(2750),
		Method: domain.PaymentMethodBankTransfer,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPartialPaid, status)
	assert.Equal(t, fixedNow, payment.PaidDate)

	mockLoanRepo.AssertExpectations(t)
	mockPaymentRepo.AssertExpectations(t)
}

func TestRecordPayment_Rejections(t *testing.T) {
	loanID := "LOAN123"

	tests := []struct {
		name        string
		loan        *domain.Loan
		request     *domain.RecordPaymentRequest
		expectedErr error
	}{
		{
			name: "completed loan",
			loan: func() *domain.Loan {
				l := storedLoan(loanID)
				l.Status = domain.LoanStatusCompleted
				return l
			}(),
			request: &domain.RecordPaymentRequest{
				Amount: decimal.NewFromInt(2750),
				Method: domain.PaymentMethodCash,
			},
			expectedErr: customError.ErrLoanAlreadyCompleted,
		},
		{
			name: "non-positive amount",
			loan: storedLoan(loanID),
			request: &domain.RecordPaymentRequest{
				Amount: decimal.Zero,
				Method: domain.PaymentMethodCash,
			},
			expectedErr: customError.ErrInvalidPaymentAmount,
		},
		{
			name: "unknown method",
			loan: storedLoan(loanID),
			request: &domain.RecordPaymentRequest{
				Amount: decimal.NewFromInt(2750),
				Method: domain.PaymentMethod("crypto"),
			},
			expectedErr: customError.ErrInvalidPaymentMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockLoanRepo := &mocks.MockLoanRepository{}
			mockPaymentRepo := &mocks.MockPaymentRepository{}
			svc := newTestService(mockLoanRepo, mockPaymentRepo)

			mockLoanRepo.On("GetByLoanID", mock.Anything, loanID).Return(tt.loan, nil)

			payment, _, err := svc.RecordPayment(context.Background(), loanID, tt.request)

			assert.Nil(t, payment)
			assert.ErrorIs(t, err, tt.expectedErr)
			mockPaymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestGetOutstanding(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)

	loanID := "LOAN123"
	mockLoanRepo.On("GetByLoanID", mock.Anything, loanID).Return(storedLoan(loanID), nil)
	mockPaymentRepo.On("GetTotalPaid", mock.Anything, loanID).Return(decimal.NewFromInt(2750), nil)

	outstanding, err := svc.GetOutstanding(context.Background(), loanID)

	require.NoError(t, err)
	assert.True(t, outstanding.Equal(decimal.NewFromInt(8250)),
		"Expected 8250, but got %v", outstanding)
}

func TestGetLoan_NotFound(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)

	mockLoanRepo.On("GetByLoanID", mock.Anything, "MISSING").Return(nil, sql.ErrNoRows)

	loan, err := svc.GetLoan(context.Background(), "MISSING")

	assert.Nil(t, loan)
	assert.ErrorIs(t, err, customError.ErrLoanNotFound)
}

func TestGetSummary(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)
	// Viewed mid-March: first installment paid, second due and unpaid.
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	loanID := "LOAN123"
	payments := []*domain.Payment{
		{
			LoanID:   loanID,
			Amount:   decimal.NewFromInt(2750),
			PaidDate: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
			Method:   domain.PaymentMethodCash,
			Status:   domain.PaymentStatusCompleted,
		},
	}

	mockLoanRepo.On("GetByLoanID", mock.Anything, loanID).Return(storedLoan(loanID), nil)
	mockPaymentRepo.On("GetByLoanID", mock.Anything, loanID).Return(payments, nil)

	summary, err := svc.GetSummary(context.Background(), loanID)

	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPartialPaid, summary.Status)
	assert.True(t, summary.TotalPaid.Equal(decimal.NewFromInt(2750)))
	assert.True(t, summary.Remaining.Equal(decimal.NewFromInt(8250)))
	assert.Equal(t, 1, summary.PaidInstallments)
	require.NotNil(t, summary.NextDue)
	assert.Equal(t, 2, summary.NextDue.InstallmentNumber)
	assert.Equal(t, domain.EntryStatusOverdue, summary.NextDue.Status)
}

func TestRefreshStatuses(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)

	settled := storedLoan("LOAN-SETTLED")
	settled.Status = domain.LoanStatusPartialPaid
	idle := storedLoan("LOAN-IDLE")

	mockLoanRepo.On("ListByStatus", mock.Anything, domain.LoanStatusPending, domain.LoanStatusPartialPaid).
		Return([]*domain.Loan{settled, idle}, nil)

	mockPaymentRepo.On("GetByLoanID", mock.Anything, settled.LoanID).Return([]*domain.Payment{
		{LoanID: settled.LoanID, Amount: decimal.NewFromInt(11000), PaidDate: fixedNow},
	}, nil)
	mockPaymentRepo.On("GetByLoanID", mock.Anything, idle.LoanID).Return([]*domain.Payment{}, nil)

	mockLoanRepo.On("UpdateStatus", mock.Anything, settled.LoanID, domain.LoanStatusCompleted).Return(nil)

	changed, err := svc.RefreshStatuses(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	mockLoanRepo.AssertExpectations(t)
	mockLoanRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, idle.LoanID, mock.Anything)
}

func TestDueWithin(t *testing.T) {
	mockLoanRepo := &mocks.MockLoanRepository{}
	mockPaymentRepo := &mocks.MockPaymentRepository{}
	svc := newTestService(mockLoanRepo, mockPaymentRepo)
	svc.now = func() time.Time { return time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC) }

	soon := storedLoan("LOAN-SOON") // starts Jan 1, first due Feb 1
	later := storedLoan("LOAN-LATER")
	later.StartDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) // first due Mar 1

	mockLoanRepo.On("ListByStatus", mock.Anything, domain.LoanStatusPending, domain.LoanStatusPartialPaid).
		Return([]*domain.Loan{soon, later}, nil)
	mockPaymentRepo.On("GetByLoanID", mock.Anything, soon.LoanID).Return([]*domain.Payment{}, nil)
	mockPaymentRepo.On("GetByLoanID", mock.Anything, later.LoanID).Return([]*domain.Payment{}, nil)

	due, err := svc.DueWithin(context.Background(), 7)

	require.NoError(t, err)
	require.Contains(t, due, soon.LoanID)
	assert.Equal(t, 1, due[soon.LoanID].InstallmentNumber)
	assert.NotContains(t, due, later.LoanID)
}
