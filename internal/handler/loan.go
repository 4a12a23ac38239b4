package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lendhub/repayment-engine/internal/domain"
	"github.com/lendhub/repayment-engine/internal/schedule"
	customError "github.com/lendhub/repayment-engine/pkg/errors"
	"github.com/lendhub/repayment-engine/pkg/response"
)

// LoanService is the slice of the service layer the HTTP surface needs.
type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.ScheduleEntry, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	GetSchedule(ctx context.Context, loanID string) ([]*domain.ScheduleEntry, error)
	RecordPayment(ctx context.Context, loanID string, request *domain.RecordPaymentRequest) (*domain.Payment, domain.LoanStatus, error)
	GetOutstanding(ctx context.Context, loanID string) (decimal.Decimal, error)
	GetSummary(ctx context.Context, loanID string) (*domain.LoanSummary, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
	log       *logrus.Logger
}

func NewLoanHandler(service LoanService, log *logrus.Logger) *LoanHandler {
	if log == nil {
		log = logrus.New()
	}
	v := validator.New()
	registerDecimalValidations(v)
	return &LoanHandler{
		service:   service,
		validator: v,
		log:       log,
	}
}

func registerDecimalValidations(v *validator.Validate) {
	_ = v.RegisterValidation("decimal_positive", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.GreaterThan(decimal.Zero)
	})
	_ = v.RegisterValidation("decimal_nonneg", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !d.IsNegative()
	})
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	loan, entries, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		h.respondError(w, err, "Failed to create loan")
		return
	}

	response.Created(w, domain.CreateLoanResponse{Loan: loan, Schedule: entries})
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.respondError(w, err, "Failed to get loan")
		return
	}

	response.Success(w, loan)
}

// GetSchedule handles GET /api/v1/loans/{loanId}/schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	entries, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		h.respondError(w, err, "Failed to get schedule")
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loanID, Schedule: entries})
}

// NextDue handles GET /api/v1/loans/{loanId}/next-due
func (h *LoanHandler) NextDue(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	entries, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		h.respondError(w, err, "Failed to get schedule")
		return
	}

	next := schedule.NextDue(entries)
	if next == nil {
		response.NotFound(w, "All installments are paid")
		return
	}

	response.Success(w, next)
}

// GetSummary handles GET /api/v1/loans/{loanId}/summary
func (h *LoanHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	summary, err := h.service.GetSummary(r.Context(), loanID)
	if err != nil {
		h.respondError(w, err, "Failed to get summary")
		return
	}

	response.Success(w, summary)
}

// GetOutstanding handles GET /api/v1/loans/{loanId}/outstanding
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	outstanding, err := h.service.GetOutstanding(r.Context(), loanID)
	if err != nil {
		h.respondError(w, err, "Failed to get outstanding balance")
		return
	}

	response.Success(w, domain.OutstandingResponse{LoanID: loanID, Outstanding: outstanding})
}

// RecordPayment handles POST /api/v1/loans/{loanId}/payments
func (h *LoanHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	var request domain.RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	payment, status, err := h.service.RecordPayment(r.Context(), loanID, &request)
	if err != nil {
		h.respondError(w, err, "Failed to record payment")
		return
	}

	response.Created(w, domain.RecordPaymentResponse{Payment: payment, LoanStatus: status})
}

func (h *LoanHandler) respondError(w http.ResponseWriter, err error, message string) {
	var bizErr *customError.BusinessError
	if !errors.As(err, &bizErr) {
		h.log.WithError(err).Error(message)
		response.InternalServerError(w, message, err)
		return
	}

	switch bizErr.Code {
	case customError.ErrCodeLoanNotFound:
		response.NotFound(w, bizErr.Message)
	case customError.ErrCodeLoanAlreadyExists, customError.ErrCodeLoanAlreadyCompleted:
		response.Conflict(w, bizErr.Message, bizErr)
	case customError.ErrCodeInvalidLoanTerms:
		// Stored terms that fail engine validation are a data-integrity
		// problem, not a malformed request.
		response.UnprocessableEntity(w, bizErr.Message, bizErr)
	case customError.ErrCodeInvalidPaymentAmount, customError.ErrCodeInvalidPaymentMethod:
		response.BadRequest(w, bizErr.Message, bizErr)
	default:
		h.log.WithError(bizErr).Error(message)
		response.InternalServerError(w, message, bizErr)
	}
}
