package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was collected.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodCheque:
		return true
	}
	return false
}

// PaymentStatus is the state of a payment record as recorded at collection
// time. Schedule slots are classified separately from these.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusLate      PaymentStatus = "late"
	PaymentStatusMissed    PaymentStatus = "missed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusLate, PaymentStatusMissed:
		return true
	}
	return false
}

// Payment represents a recorded payment against a loan
type Payment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	LoanID    string          `json:"loan_id" db:"loan_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	PaidDate  time.Time       `json:"paid_date" db:"paid_date"`
	Method    PaymentMethod   `json:"method" db:"method"`
	Status    PaymentStatus   `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type RecordPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"decimal_positive"`
	Method   PaymentMethod   `json:"method" validate:"required"`
	PaidDate *time.Time      `json:"paid_date,omitempty"`
}

type RecordPaymentResponse struct {
	Payment    *Payment   `json:"payment"`
	LoanStatus LoanStatus `json:"loan_status"`
}
