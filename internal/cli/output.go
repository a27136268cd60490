package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/application/attribution"
	"github.com/eshaffer321/utility-ledger/internal/application/service"
	"github.com/eshaffer321/utility-ledger/internal/domain/money"
	"github.com/eshaffer321/utility-ledger/internal/domain/responsibility"
)

// PrintIngestSummary prints the result of a one-shot ingest
func PrintIngestSummary(w io.Writer, path string, outcome *service.SyncOutcome) {
	r := outcome.Result
	fmt.Fprintf(w, "utility-ledger: ingested %s (run %s, %s)\n", path, outcome.RunID, outcome.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Entries=%d Skipped=%d\n", r.EntriesTotal, r.SkippedCount())
	fmt.Fprintf(w, "Bills:    created=%d updated=%d\n", r.BillsCreated, r.BillsUpdated)
	fmt.Fprintf(w, "Payments: created=%d updated=%d reassigned=%d locked=%d orphans=%d\n",
		r.PaymentsCreated, r.PaymentsUpdated, r.PaymentsReassigned, r.PaymentsLocked, r.Orphans)

	if r.BalanceChanged {
		fmt.Fprintf(w, "Balance changed: %s\n", r.Balance)
	}

	if reasons := r.SkipReasons(); len(reasons) > 0 {
		fmt.Fprintln(w, "\nSkipped entries:")
		for _, reason := range reasons {
			fmt.Fprintf(w, "  - %s: %d\n", reason, r.Skipped[reason])
		}
	}
}

// PrintSweepResult prints a sweep outcome. warn is the no-default-payee
// condition, if any.
func PrintSweepResult(w io.Writer, result *attribution.SweepResult, warn error) {
	if result == nil {
		return
	}
	fmt.Fprintf(w, "Expired pending payments: %d\n", result.Expired)
	if warn != nil {
		fmt.Fprintf(w, "Warning: %v; nothing was attributed\n", warn)
		return
	}
	if result.Attributed > 0 {
		fmt.Fprintf(w, "Attributed to %s: %d\n", result.PayeeName, result.Attributed)
	}
}

// PrintReport prints one table per bill followed by the running balances
func PrintReport(w io.Writer, report *responsibility.Report) {
	if len(report.Bills) == 0 {
		fmt.Fprintln(w, "No bills recorded.")
		return
	}

	for _, bill := range report.Bills {
		title := bill.CycleDate
		if bill.MonthRange != "" {
			title += " (" + bill.MonthRange + ")"
		}
		fmt.Fprintf(w, "%s  total=%s paid=%s remaining=%s [%s]\n",
			title, money.Format(bill.Total), money.Format(bill.TotalPaid), money.Format(bill.Remaining), bill.Status)

		if len(bill.Payees) > 0 {
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "  PAYEE\tSHARE\tOWED\tPAID\tBALANCE\tSTATUS")
			for _, p := range bill.Payees {
				fmt.Fprintf(tw, "  %s\t%.0f%%\t%s\t%s\t%s\t%s\n",
					p.Name, p.ResponsibilityPercent, money.Format(p.ShareOfBill), money.Format(p.AmountPaid),
					money.Format(p.TotalBalance), p.Status)
			}
			_ = tw.Flush()
		}
		fmt.Fprintln(w)
	}

	if len(report.Payees) > 0 {
		fmt.Fprintln(w, "Running balances:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, p := range report.Payees {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.Name, money.Format(p.Balance), p.Status)
		}
		_ = tw.Flush()
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}
