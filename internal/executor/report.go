package executor

import (
	"fmt"
	"strings"

	"finsight/internal/logging"
	"finsight/internal/types"

	"github.com/google/uuid"
)

// downloadReport generates a report over the current month to date. The
// compliance report inherits the vendor from the last filter when one is
// set, so "download the compliance report" after filtering IndiSky scopes
// to IndiSky.
func (e *Executor) downloadReport(user types.User, slots types.Slots, refs Referents) types.ActionResult {
	reportType := slots.ReportType
	if reportType == "" {
		reportType = "compliance_status"
	}

	now := e.clock()
	rng := types.DateRange{
		Start: now.Format("2006-01") + "-01",
		End:   now.Format("2006-01-02"),
	}

	vendor := ""
	if reportType == "compliance_status" {
		vendor = refs.LastFilterSlots.Vendor
	}

	var total, processed, failed int
	var totalAmount, processedAmount float64
	for _, inv := range e.data.Invoices() {
		if inv.WorkspaceID != user.WorkspaceID {
			continue
		}
		if vendor != "" && !strings.EqualFold(inv.Vendor, vendor) {
			continue
		}
		if !rng.Contains(inv.Date) {
			continue
		}
		total++
		totalAmount += inv.Amount
		switch inv.Status {
		case types.InvoiceProcessed:
			processed++
			processedAmount += inv.Amount
		case types.InvoiceFailed:
			failed++
		}
	}

	summary := types.ReportSummary{
		TotalInvoices:     total,
		ProcessedInvoices: processed,
		FailedInvoices:    failed,
		TotalAmount:       totalAmount,
		ProcessedAmount:   processedAmount,
	}
	if total > 0 {
		summary.ComplianceRate = float64(processed) / float64(total) * 100
	}

	name := fmt.Sprintf("Compliance_Report_%s.pdf", now.Format("Jan2006"))
	if vendor != "" {
		name = fmt.Sprintf("%s_%s", strings.ReplaceAll(vendor, " ", "_"), name)
	}
	if reportType != "compliance_status" {
		name = fmt.Sprintf("Report_%s.pdf", now.Format("Jan2006"))
	}

	report := &types.Report{
		ID:          fmt.Sprintf("rpt_%s", uuid.NewString()[:8]),
		Name:        name,
		Type:        reportType,
		GeneratedAt: now,
		GeneratedBy: user.ID,
		WorkspaceID: user.WorkspaceID,
		Summary:     summary,
	}

	logging.Executor("Generated %s report %s for user %s (%d invoices)", reportType, report.ID, user.ID, total)

	var b strings.Builder
	fmt.Fprintf(&b, "Generated and downloaded '%s'.", name)
	if reportType == "compliance_status" {
		fmt.Fprintf(&b, " Report shows %d invoice%s processed (%s) with valid GSTIN.",
			processed, plural(processed), formatAmountWhole(processedAmount))
		if failed > 0 {
			fmt.Fprintf(&b, " %d remaining invoice%s still need vendor correction.", failed, plural(failed))
		}
	}

	return types.ActionResult{
		Kind:     types.ResultOK,
		Action:   types.ActionDownloadReport,
		Response: b.String(),
		Report:   report,
	}
}
