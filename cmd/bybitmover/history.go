package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/iller75/BybitMover/internal/adapter/repository/file"
	"github.com/iller75/BybitMover/internal/usecase"
)

func printHistory(ctx context.Context, out io.Writer, ledgerPath string, days int) error {
	repo, err := file.NewLedgerRepository(ledgerPath)
	if err != nil {
		return err
	}

	summary, err := usecase.NewReportUseCase(repo).Summary(ctx, days)
	if err != nil {
		return err
	}

	if summary.TransferCount == 0 {
		fmt.Fprintf(out, "No transfers recorded in %s\n", ledgerPath)
		return nil
	}

	fmt.Fprintf(out, "Transfers:              %d\n", summary.TransferCount)
	fmt.Fprintf(out, "Total moved to main:    %s USDT\n", summary.MainAccountTotal.StringFixed(2))
	fmt.Fprintf(out, "Average per day:        %s USDT\n", summary.AverageDailyTransfer.StringFixed(2))
	fmt.Fprintf(out, "Predicted in %d days:   %s USDT\n", summary.PredictionDays, summary.PredictedGrowth.StringFixed(2))
	fmt.Fprintln(out)

	uids := make([]string, 0, len(summary.SubAccountTotals))
	for uid := range summary.SubAccountTotals {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUB ACCOUNT\tTOTAL (USDT)")
	for _, uid := range uids {
		fmt.Fprintf(tw, "%s\t%s\n", uid, summary.SubAccountTotals[uid].StringFixed(2))
	}

	return tw.Flush()
}
