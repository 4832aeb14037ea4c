package executor

import (
	"fmt"
	"sort"
	"strings"

	"finsight/internal/logging"
	"finsight/internal/types"
)

// Canned explanations per failure reason: what happened, then the rule or
// fix behind it.
var failureExplanations = map[string][2]string{
	types.FailureMissingGSTIN: {
		"failed because GSTIN (GST Identification Number) is missing from the invoice files",
		"Indian tax law requires GSTIN for B2B transactions above ₹500.",
	},
	types.FailureInvalidAmount: {
		"failed due to invalid amount calculations",
		"The invoice amounts don't match the purchase order or have calculation errors.",
	},
	types.FailureDuplicateInvoice: {
		"failed because they are duplicates",
		"These invoices have already been submitted and processed previously.",
	},
	types.FailureExpiredPO: {
		"failed because the purchase order has expired",
		"The invoices reference purchase orders that are no longer valid.",
	},
	types.FailureMissingDocumentation: {
		"failed due to missing supporting documentation",
		"Required supporting documents like delivery receipts or contracts are not attached.",
	},
}

// invoiceListCap limits how many invoice numbers the explanation names.
const invoiceListCap = 7

// explainFailures analyzes the invoices in the last result set. Without a
// prior result set there is nothing to refer to, so the turn is invalid
// rather than silently analyzing everything.
func (e *Executor) explainFailures(user types.User, refs Referents) types.ActionResult {
	if len(refs.LastResultSet) == 0 {
		return types.ActionResult{
			Kind:     types.ResultInvalid,
			Action:   types.ActionExplainFailures,
			Response: "I don't have any recent invoice data to analyze. Please filter some invoices first.",
		}
	}

	analysis := e.analyze(refs.LastResultSet)
	if analysis.TotalInvoices == 0 {
		return types.ActionResult{
			Kind:     types.ResultEmpty,
			Action:   types.ActionExplainFailures,
			Response: "None of the invoices from your last result are still available to analyze.",
		}
	}
	if len(analysis.FailureReasons) == 0 {
		return types.ActionResult{
			Kind:     types.ResultOK,
			Action:   types.ActionExplainFailures,
			Response: "None of those invoices have a recorded failure reason. They may still be processing or already processed.",
			Analysis: analysis,
		}
	}

	response, offer := e.explainResponse(analysis, refs.LastResultSet)
	logging.Executor("explain_failures analyzed %d invoices for user %s", analysis.TotalInvoices, user.ID)

	return types.ActionResult{
		Kind:        types.ResultOK,
		Action:      types.ActionExplainFailures,
		Response:    response,
		Analysis:    analysis,
		OfferTicket: offer,
	}
}

// analyze aggregates failure reasons, amounts, and vendors over invoice ids.
// Ids that no longer resolve are skipped.
func (e *Executor) analyze(invoiceIDs []string) *types.FailureAnalysis {
	analysis := &types.FailureAnalysis{
		FailureReasons: make(map[string]int),
	}
	vendors := make(map[string]struct{})

	for _, id := range invoiceIDs {
		inv, ok := e.data.InvoiceByID(id)
		if !ok {
			continue
		}
		analysis.TotalInvoices++
		analysis.TotalAmount += inv.Amount
		vendors[inv.Vendor] = struct{}{}
		if inv.FailureReason != "" {
			analysis.FailureReasons[inv.FailureReason]++
		}
	}

	for vendor := range vendors {
		analysis.AffectedVendors = append(analysis.AffectedVendors, vendor)
	}
	sort.Strings(analysis.AffectedVendors)
	return analysis
}

func (e *Executor) explainResponse(analysis *types.FailureAnalysis, invoiceIDs []string) (string, bool) {
	var parts []string

	if len(analysis.FailureReasons) == 1 {
		var reason string
		var count int
		for r, c := range analysis.FailureReasons {
			reason, count = r, c
		}

		if expl, ok := failureExplanations[reason]; ok {
			parts = append(parts, fmt.Sprintf("All %d invoice%s %s.", count, plural(count), expl[0]))
			parts = append(parts, expl[1])
		} else {
			parts = append(parts, fmt.Sprintf("All %d invoice%s failed due to %s.", count, plural(count), humanizeReason(reason)))
		}

		// Name the affected invoices for a single failure type.
		var numbers []string
		for _, id := range invoiceIDs {
			if len(numbers) == invoiceListCap {
				break
			}
			inv, ok := e.data.InvoiceByID(id)
			if !ok || inv.FailureReason != reason {
				continue
			}
			label := inv.InvoiceNumber
			if label == "" {
				label = inv.ID
			}
			numbers = append(numbers, label)
		}
		if len(numbers) > 0 {
			parts = append(parts, fmt.Sprintf("The invoice%s: %s.", plural(len(numbers)), strings.Join(numbers, ", ")))
		}
	} else {
		parts = append(parts, fmt.Sprintf("The %d invoices failed for different reasons:", analysis.TotalInvoices))
		reasons := make([]string, 0, len(analysis.FailureReasons))
		for reason := range analysis.FailureReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			count := analysis.FailureReasons[reason]
			parts = append(parts, fmt.Sprintf("- %d invoice%s: %s", count, plural(count), humanizeReason(reason)))
		}
	}

	// Compliance failures get a proactive ticket offer.
	offer := analysis.FailureReasons[types.FailureMissingGSTIN] > 0 ||
		analysis.FailureReasons[types.FailureMissingDocumentation] > 0
	if offer {
		parts = append(parts, "\nWould you like me to create a ticket and notify you when this is fixed?")
	}

	return strings.Join(parts, " "), offer
}
