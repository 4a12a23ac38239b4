package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lendhub/repayment-engine/internal/config"
	"github.com/lendhub/repayment-engine/internal/domain"
	"github.com/lendhub/repayment-engine/internal/repository"
	"github.com/lendhub/repayment-engine/internal/schedule"
	customError "github.com/lendhub/repayment-engine/pkg/errors"
)

// LoanService hosts the schedule engine: it fetches loans and payments from
// the store, feeds them through the pure schedule functions, and persists the
// derived loan status when it drifts.
type LoanService struct {
	loanRepo    repository.LoanRepository
	paymentRepo repository.PaymentRepository
	redis       *redis.Client
	config      *config.Config
	log         *logrus.Logger
	now         func() time.Time
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	redisClient *redis.Client,
	cfg *config.Config,
	log *logrus.Logger,
) *LoanService {
	if log == nil {
		log = logrus.New()
	}
	return &LoanService{
		loanRepo:    loanRepo,
		paymentRepo: paymentRepo,
		redis:       redisClient,
		config:      cfg,
		log:         log,
		now:         time.Now,
	}
}

// CreateLoan validates the terms, derives the totals and persists a new loan
// in PENDING state, returning the loan with its projected schedule.
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.ScheduleEntry, error) {
	existingLoan, err := s.loanRepo.GetByLoanID(ctx, request.LoanID)
	if err == nil && existingLoan != nil {
		return nil, nil, customError.WrapLoanAlreadyExists(request.LoanID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	totals, err := schedule.ComputeTotals(request.Principal, request.InterestRate, request.TermMonths)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	loan := &domain.Loan{
		ID:                uuid.New(),
		LoanID:            request.LoanID,
		BorrowerID:        request.BorrowerID,
		LenderID:          request.LenderID,
		Principal:         request.Principal,
		InterestRate:      request.InterestRate,
		TermMonths:        request.TermMonths,
		StartDate:         request.StartDate,
		TotalPayable:      totals.TotalPayable,
		InstallmentAmount: totals.InstallmentAmount,
		Status:            domain.LoanStatusPending,
		Purpose:           request.Purpose,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err = s.loanRepo.Create(ctx, loan); err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	entries, err := schedule.Generate(loan, nil, now)
	if err != nil {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":     loan.LoanID,
		"term_months": loan.TermMonths,
		"installment": loan.InstallmentAmount.String(),
	}).Info("loan created")

	return loan, entries, nil
}

// GetLoan retrieves a single loan by its external ID.
func (s *LoanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

// GetSchedule recomputes the full classified schedule for a loan from its
// current payments.
func (s *LoanService) GetSchedule(ctx context.Context, loanID string) ([]*domain.ScheduleEntry, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return schedule.Generate(loan, payments, s.now())
}

// RecordPayment persists a payment against a loan, re-derives the aggregate
// status and stores it when it changed.
func (s *LoanService) RecordPayment(ctx context.Context, loanID string, request *domain.RecordPaymentRequest) (*domain.Payment, domain.LoanStatus, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, "", err
	}

	if loan.Status == domain.LoanStatusCompleted {
		return nil, "", customError.WrapLoanAlreadyCompleted(loanID)
	}
	if request.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, "", customError.WrapInvalidPaymentAmount(request.Amount.String())
	}
	if !request.Method.Valid() {
		return nil, "", customError.WrapInvalidPaymentMethod(string(request.Method))
	}

	now := s.now()
	paidDate := now
	if request.PaidDate != nil {
		paidDate = *request.PaidDate
	}

	payment := &domain.Payment{
		ID:        uuid.New(),
		LoanID:    loanID,
		Amount:    request.Amount,
		PaidDate:  paidDate,
		Method:    request.Method,
		Status:    domain.PaymentStatusCompleted,
		CreatedAt: now,
	}

	if err = s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, "", customError.WrapDatabaseError(err)
	}

	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, "", customError.WrapDatabaseError(err)
	}

	status, err := schedule.DeriveStatus(loan, payments)
	if err != nil {
		return nil, "", err
	}

	if status != loan.Status {
		if err = s.loanRepo.UpdateStatus(ctx, loanID, status); err != nil {
			return nil, "", customError.WrapDatabaseError(err)
		}
		s.log.WithFields(logrus.Fields{
			"loan_id": loanID,
			"from":    loan.Status,
			"to":      status,
		}).Info("loan status changed")
	}

	s.invalidateSummary(ctx, loanID)

	return payment, status, nil
}

// GetOutstanding returns the total payable minus everything paid so far.
func (s *LoanService) GetOutstanding(ctx context.Context, loanID string) (decimal.Decimal, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}

	totalPaid, err := s.paymentRepo.GetTotalPaid(ctx, loanID)
	if err != nil {
		return decimal.Zero, customError.WrapDatabaseError(err)
	}

	return loan.TotalPayable.Sub(totalPaid), nil
}

// GetSummary assembles the dashboard view of a loan. Summaries are cached in
// Redis and dropped whenever a payment lands.
func (s *LoanService) GetSummary(ctx context.Context, loanID string) (*domain.LoanSummary, error) {
	if cached := s.cachedSummary(ctx, loanID); cached != nil {
		return cached, nil
	}

	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	entries, err := schedule.Generate(loan, payments, s.now())
	if err != nil {
		return nil, err
	}

	status, err := schedule.DeriveStatus(loan, payments)
	if err != nil {
		return nil, err
	}

	totalPaid := schedule.TotalPaid(payments)
	paidCount := 0
	for _, entry := range entries {
		if entry.Status == domain.EntryStatusPaid {
			paidCount++
		}
	}

	summary := &domain.LoanSummary{
		LoanID:            loan.LoanID,
		Status:            status,
		TotalPayable:      loan.TotalPayable,
		InstallmentAmount: loan.InstallmentAmount,
		TotalPaid:         totalPaid,
		Remaining:         loan.TotalPayable.Sub(totalPaid),
		PaidInstallments:  paidCount,
		TermMonths:        loan.TermMonths,
		NextDue:           schedule.NextDue(entries),
	}

	s.cacheSummary(ctx, summary)

	return summary, nil
}

// RefreshStatuses re-derives the status of every open loan and persists the
// ones that drifted. Returns how many loans changed.
func (s *LoanService) RefreshStatuses(ctx context.Context) (int, error) {
	loans, err := s.loanRepo.ListByStatus(ctx, domain.LoanStatusPending, domain.LoanStatusPartialPaid)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	changed := 0
	for _, loan := range loans {
		payments, err := s.paymentRepo.GetByLoanID(ctx, loan.LoanID)
		if err != nil {
			return changed, customError.WrapDatabaseError(err)
		}

		status, err := schedule.DeriveStatus(loan, payments)
		if err != nil {
			s.log.WithField("loan_id", loan.LoanID).WithError(err).Warn("skipping loan with invalid terms")
			continue
		}

		if status == loan.Status {
			continue
		}

		if err = s.loanRepo.UpdateStatus(ctx, loan.LoanID, status); err != nil {
			return changed, customError.WrapDatabaseError(err)
		}
		s.invalidateSummary(ctx, loan.LoanID)
		changed++
	}

	return changed, nil
}

// DueWithin reports, per open loan, the next unpaid installment falling due
// inside the window. Used by the reminder job.
func (s *LoanService) DueWithin(ctx context.Context, days int) (map[string]*domain.ScheduleEntry, error) {
	loans, err := s.loanRepo.ListByStatus(ctx, domain.LoanStatusPending, domain.LoanStatusPartialPaid)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := s.now()
	deadline := now.AddDate(0, 0, days)

	due := make(map[string]*domain.ScheduleEntry)
	for _, loan := range loans {
		payments, err := s.paymentRepo.GetByLoanID(ctx, loan.LoanID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}

		entries, err := schedule.Generate(loan, payments, now)
		if err != nil {
			continue
		}

		next := schedule.NextDue(entries)
		if next == nil {
			continue
		}
		if next.Status == domain.EntryStatusOverdue || !next.DueDate.After(deadline) {
			due[loan.LoanID] = next
		}
	}

	return due, nil
}

func summaryCacheKey(loanID string) string {
	return fmt.Sprintf("loan:summary:%s", loanID)
}

func (s *LoanService) cachedSummary(ctx context.Context, loanID string) *domain.LoanSummary {
	if s.redis == nil {
		return nil
	}

	raw, err := s.redis.Get(ctx, summaryCacheKey(loanID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.WithError(customError.WrapCacheError(err)).Warn("summary cache read failed")
		}
		return nil
	}

	var summary domain.LoanSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *LoanService) cacheSummary(ctx context.Context, summary *domain.LoanSummary) {
	if s.redis == nil {
		return
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}

	ttl := 10 * time.Minute
	if s.config != nil && s.config.Business.SummaryCacheTTL > 0 {
		ttl = s.config.Business.SummaryCacheTTL
	}

	if err := s.redis.Set(ctx, summaryCacheKey(summary.LoanID), raw, ttl).Err(); err != nil {
		s.log.WithError(customError.WrapCacheError(err)).Warn("summary cache write failed")
	}
}

func (s *LoanService) invalidateSummary(ctx context.Context, loanID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, summaryCacheKey(loanID)).Err(); err != nil {
		s.log.WithError(customError.WrapCacheError(err)).Warn("summary cache invalidation failed")
	}
}
