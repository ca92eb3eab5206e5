package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
	"github.com/iller75/BybitMover/internal/usecase"
)

// TransferResponse represents a ledger record in API responses.
type TransferResponse struct {
	ID          string          `json:"id,omitempty"`
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TransferFromDomain converts a domain record to response.
func TransferFromDomain(t *domain.TransferRecord) *TransferResponse {
	return &TransferResponse{
		ID:          t.ID,
		FromAccount: t.FromAccount,
		ToAccount:   t.ToAccount,
		Amount:      t.Amount,
		Timestamp:   t.Timestamp,
	}
}

// TransfersFromDomain converts domain records to responses.
func TransfersFromDomain(records []*domain.TransferRecord) []*TransferResponse {
	result := make([]*TransferResponse, len(records))
	for i, r := range records {
		result[i] = TransferFromDomain(r)
	}
	return result
}

// ChartPointResponse is one point of the cumulative sweep chart.
type ChartPointResponse struct {
	Date       string          `json:"date"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// SummaryResponse is the dashboard view of the ledger.
type SummaryResponse struct {
	TransferCount        int                        `json:"transfer_count"`
	MainAccountTotal     decimal.Decimal            `json:"main_account_total"`
	SubAccountTotals     map[string]decimal.Decimal `json:"sub_account_totals"`
	AverageDailyTransfer decimal.Decimal            `json:"average_daily_transfer"`
	PredictionDays       int                        `json:"prediction_days"`
	PredictedGrowth      decimal.Decimal            `json:"predicted_growth"`
	Chart                []ChartPointResponse       `json:"chart"`
}

// SummaryFromUseCase converts a report summary to response.
func SummaryFromUseCase(s *usecase.Summary) *SummaryResponse {
	chart := make([]ChartPointResponse, len(s.Chart))
	for i, p := range s.Chart {
		chart[i] = ChartPointResponse{Date: p.Date, Cumulative: p.Cumulative}
	}

	return &SummaryResponse{
		TransferCount:        s.TransferCount,
		MainAccountTotal:     s.MainAccountTotal,
		SubAccountTotals:     s.SubAccountTotals,
		AverageDailyTransfer: s.AverageDailyTransfer.Round(2),
		PredictionDays:       s.PredictionDays,
		PredictedGrowth:      s.PredictedGrowth.Round(2),
		Chart:                chart,
	}
}

// ConsistencyResponse reports the result of a ledger consistency check.
type ConsistencyResponse struct {
	Consistent bool   `json:"consistent"`
	Detail     string `json:"detail,omitempty"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
