package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when a ledger record is invalid or out of order.
	ErrInconsistentLedger = errors.New("ledger is inconsistent")
)

const dateLayout = "2006-01-02"

// Summary is the aggregate view of the ledger shown by the report API and CLI.
type Summary struct {
	TransferCount        int
	MainAccountTotal     decimal.Decimal
	SubAccountTotals     map[string]decimal.Decimal
	AverageDailyTransfer decimal.Decimal
	PredictionDays       int
	PredictedGrowth      decimal.Decimal
	Chart                []ChartPoint
}

// ChartPoint is the cumulative swept amount after a transfer.
type ChartPoint struct {
	Date       string
	Cumulative decimal.Decimal
}

// ReportUseCase builds read-only views over the ledger.
type ReportUseCase struct {
	ledger LedgerReader
}

// NewReportUseCase creates a new ReportUseCase.
func NewReportUseCase(ledger LedgerReader) *ReportUseCase {
	return &ReportUseCase{
		ledger: ledger,
	}
}

// ListTransfersInput represents input for listing transfers.
type ListTransfersInput struct {
	AccountUID string
	Limit      int
	Offset     int
}

// ListTransfers returns ledger records in chronological order, optionally
// restricted to one source account.
func (uc *ReportUseCase) ListTransfers(ctx context.Context, input ListTransfersInput) ([]*domain.TransferRecord, error) {
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)

	records, err := uc.ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	if input.AccountUID != "" {
		filtered := make([]*domain.TransferRecord, 0, len(records))
		for _, r := range records {
			if r.FromAccount == input.AccountUID {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if offset >= len(records) {
		return []*domain.TransferRecord{}, nil
	}

	end := offset + limit
	if end > len(records) {
		end = len(records)
	}

	return records[offset:end], nil
}

// Summary computes totals, the average daily sweep and a projection over days.
func (uc *ReportUseCase) Summary(ctx context.Context, days int) (*Summary, error) {
	if days <= 0 {
		days = DefaultPredictionDays
	}

	records, err := uc.ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TransferCount:    len(records),
		MainAccountTotal: decimal.Zero,
		SubAccountTotals: make(map[string]decimal.Decimal),
		PredictionDays:   days,
		Chart:            []ChartPoint{},
	}

	daily := make(map[string]decimal.Decimal)
	for _, r := range records {
		s.MainAccountTotal = s.MainAccountTotal.Add(r.Amount)
		s.SubAccountTotals[r.FromAccount] = s.SubAccountTotals[r.FromAccount].Add(r.Amount)

		date := r.Timestamp.Format(dateLayout)
		daily[date] = daily[date].Add(r.Amount)
	}

	if len(daily) > 0 {
		s.AverageDailyTransfer = s.MainAccountTotal.Div(decimal.NewFromInt(int64(len(daily))))
		s.PredictedGrowth = s.AverageDailyTransfer.Mul(decimal.NewFromInt(int64(days)))
	}

	sorted := make([]*domain.TransferRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	running := decimal.Zero
	for _, r := range sorted {
		running = running.Add(r.Amount)
		s.Chart = append(s.Chart, ChartPoint{
			Date:       r.Timestamp.Format(dateLayout),
			Cumulative: running,
		})
	}

	return s, nil
}

// CheckConsistency verifies that every record is valid and that records are
// stored in chronological order.
func (uc *ReportUseCase) CheckConsistency(ctx context.Context) (bool, error) {
	records, err := uc.ledger.List(ctx)
	if err != nil {
		return false, err
	}

	var prev time.Time
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return false, fmt.Errorf("%w: record %d: %w", ErrInconsistentLedger, i, err)
		}
		if r.Timestamp.Before(prev) {
			return false, fmt.Errorf("%w: record %d is older than record %d", ErrInconsistentLedger, i, i-1)
		}
		prev = r.Timestamp
	}

	return true, nil
}
