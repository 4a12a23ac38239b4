// Package schedule derives a loan's repayment schedule and aggregate status
// from its terms and recorded payments. Everything here is a pure function of
// (loan, payments, now); nothing is persisted or cached between calls.
package schedule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lendhub/repayment-engine/internal/domain"
	customError "github.com/lendhub/repayment-engine/pkg/errors"
	"github.com/lendhub/repayment-engine/pkg/utils"
)

// Totals holds the derived amounts for a loan.
type Totals struct {
	TotalPayable      decimal.Decimal
	InstallmentAmount decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// ComputeTotals calculates the flat-rate total payable and the per-installment
// amount: totalPayable = principal + principal * rate / 100, split evenly over
// the term and rounded to 2 decimal places.
func ComputeTotals(principal, interestRate decimal.Decimal, termMonths int) (Totals, error) {
	if err := validateTerms(principal, interestRate, termMonths); err != nil {
		return Totals{}, err
	}

	totalInterest := principal.Mul(interestRate).Div(oneHundred)
	totalPayable := principal.Add(totalInterest)
	installment := utils.Round2(totalPayable.Div(decimal.NewFromInt(int64(termMonths))))

	return Totals{
		TotalPayable:      totalPayable,
		InstallmentAmount: installment,
	}, nil
}

// Generate builds the full ordered schedule for a loan, classifying every
// installment slot against the recorded payments and the reference instant.
//
// Installment i is due i calendar months after the start date. A payment
// satisfies a slot when its paid date falls in the slot's due (month, year)
// and it has not already been consumed by an earlier slot, so one payment
// never covers two installments. The final installment absorbs the rounding
// residue, keeping the sum of all entries equal to the total payable.
func Generate(loan *domain.Loan, payments []*domain.Payment, now time.Time) ([]*domain.ScheduleEntry, error) {
	totals, err := ComputeTotals(loan.Principal, loan.InterestRate, loan.TermMonths)
	if err != nil {
		return nil, err
	}

	buckets := bucketByMonth(payments)

	entries := make([]*domain.ScheduleEntry, 0, loan.TermMonths)
	for i := 1; i <= loan.TermMonths; i++ {
		dueDate := utils.AddCalendarMonths(loan.StartDate, i)

		amount := totals.InstallmentAmount
		if i == loan.TermMonths {
			amount = lastInstallment(totals, loan.TermMonths)
		}

		entry := &domain.ScheduleEntry{
			InstallmentNumber: i,
			DueDate:           dueDate,
			Amount:            amount,
		}

		if payment := buckets.take(dueDate); payment != nil {
			paidDate := payment.PaidDate
			entry.Status = domain.EntryStatusPaid
			entry.PaidDate = &paidDate
			entry.Method = payment.Method
		} else if utils.IsDateOverdue(dueDate, now) {
			entry.Status = domain.EntryStatusOverdue
		} else {
			entry.Status = domain.EntryStatusUpcoming
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// DeriveStatus classifies the loan as a whole from the sum of recorded
// payments: PENDING with no payments, COMPLETED once the total payable is
// covered, PARTIAL_PAID in between.
func DeriveStatus(loan *domain.Loan, payments []*domain.Payment) (domain.LoanStatus, error) {
	totals, err := ComputeTotals(loan.Principal, loan.InterestRate, loan.TermMonths)
	if err != nil {
		return "", err
	}

	totalPaid := TotalPaid(payments)

	switch {
	case totalPaid.IsZero():
		return domain.LoanStatusPending, nil
	case totals.TotalPayable.Sub(totalPaid).LessThanOrEqual(decimal.Zero):
		return domain.LoanStatusCompleted, nil
	default:
		return domain.LoanStatusPartialPaid, nil
	}
}

// NextDue returns the first installment still awaiting payment, overdue slots
// included, or nil when every entry is paid.
func NextDue(entries []*domain.ScheduleEntry) *domain.ScheduleEntry {
	for _, entry := range entries {
		if entry.Status == domain.EntryStatusOverdue || entry.Status == domain.EntryStatusUpcoming {
			return entry
		}
	}
	return nil
}

// TotalPaid sums all recorded payment amounts, matched to a slot or not.
func TotalPaid(payments []*domain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, payment := range payments {
		total = total.Add(payment.Amount)
	}
	return total
}

func validateTerms(principal, interestRate decimal.Decimal, termMonths int) error {
	if principal.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidLoanTerms("principal must be positive")
	}
	if interestRate.IsNegative() {
		return customError.WrapInvalidLoanTerms("interest rate must not be negative")
	}
	if termMonths < 1 {
		return customError.WrapInvalidLoanTerms("term must be at least one month")
	}
	return nil
}

// lastInstallment is totalPayable minus the rounded installments before it.
func lastInstallment(totals Totals, termMonths int) decimal.Decimal {
	priorSum := totals.InstallmentAmount.Mul(decimal.NewFromInt(int64(termMonths - 1)))
	return totals.TotalPayable.Sub(priorSum)
}

// monthKey collapses a date to its (year, month) bucket.
type monthKey struct {
	year  int
	month time.Month
}

type paymentBuckets map[monthKey][]*domain.Payment

// bucketByMonth groups payments by the calendar month they were paid in,
// oldest first inside each bucket so matching stays deterministic regardless
// of input order.
func bucketByMonth(payments []*domain.Payment) paymentBuckets {
	buckets := make(paymentBuckets)
	for _, payment := range payments {
		key := monthKey{payment.PaidDate.Year(), payment.PaidDate.Month()}
		buckets[key] = append(buckets[key], payment)
	}
	for _, bucket := range buckets {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].PaidDate.Before(bucket[j].PaidDate)
		})
	}
	return buckets
}

// take consumes the earliest unconsumed payment in the due date's month
// bucket, returning nil when none is left.
func (b paymentBuckets) take(dueDate time.Time) *domain.Payment {
	key := monthKey{dueDate.Year(), dueDate.Month()}
	bucket := b[key]
	if len(bucket) == 0 {
		return nil
	}
	payment := bucket[0]
	b[key] = bucket[1:]
	return payment
}
