package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/iller75/BybitMover/internal/adapter/http/dto"
	"github.com/iller75/BybitMover/internal/domain"
	"github.com/iller75/BybitMover/internal/usecase"
)

// ReportService defines the ledger report operations used by the handler.
type ReportService interface {
	ListTransfers(ctx context.Context, input usecase.ListTransfersInput) ([]*domain.TransferRecord, error)
	Summary(ctx context.Context, days int) (*usecase.Summary, error)
	CheckConsistency(ctx context.Context) (bool, error)
}

// ReportHandler serves read-only views of the transfer ledger.
type ReportHandler struct {
	reports ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// ListTransfers handles GET /api/v1/transfers.
func (h *ReportHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account != "" {
		if err := domain.ValidateAccountUID(account); err != nil {
			writeError(w, mapDomainError(err), "invalid account", err.Error())
			return
		}
	}

	records, err := h.reports.ListTransfers(r.Context(), usecase.ListTransfersInput{
		AccountUID: account,
		Limit:      parseIntQuery(r, "limit", 0),
		Offset:     parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list transfers", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransfersFromDomain(records))
}

// Summary handles GET /api/v1/summary.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days := parseIntQuery(r, "days", usecase.DefaultPredictionDays)

	summary, err := h.reports.Summary(r.Context(), days)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to build summary", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SummaryFromUseCase(summary))
}

// Consistency handles GET /api/v1/ledger/consistency.
func (h *ReportHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	ok, err := h.reports.CheckConsistency(r.Context())
	if err != nil && !errors.Is(err, usecase.ErrInconsistentLedger) {
		writeError(w, mapDomainError(err), "failed to check ledger", err.Error())
		return
	}

	resp := dto.ConsistencyResponse{Consistent: ok}
	status := http.StatusOK
	if err != nil {
		resp.Detail = err.Error()
		status = mapDomainError(err)
	}

	writeJSON(w, status, resp)
}
