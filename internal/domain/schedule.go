package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus classifies a schedule slot against recorded payments and the
// reference instant. paid is terminal; upcoming becomes overdue once the due
// date passes, and either becomes paid when a matching payment lands.
type EntryStatus string

const (
	EntryStatusPaid     EntryStatus = "paid"
	EntryStatusOverdue  EntryStatus = "overdue"
	EntryStatusUpcoming EntryStatus = "upcoming"
)

func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusPaid, EntryStatusOverdue, EntryStatusUpcoming:
		return true
	}
	return false
}

// ScheduleEntry is one derived installment slot. It is never persisted; the
// schedule is recomputed from the loan and its payments on every request.
type ScheduleEntry struct {
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	Amount            decimal.Decimal `json:"amount"`
	Status            EntryStatus     `json:"status"`
	PaidDate          *time.Time      `json:"paid_date,omitempty"`
	Method            PaymentMethod   `json:"method,omitempty"`
}
