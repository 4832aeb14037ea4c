package executor

import (
	"fmt"
	"sort"
	"strings"

	"finsight/internal/logging"
	"finsight/internal/types"
)

// displayCap limits how many invoices ride along in the result for display.
const displayCap = 10

// filterInvoices applies the slot predicates conjunctively over the user's
// workspace. Matches keep the dataset's insertion order. An empty match is a
// normal outcome; malformed slots are rejected before anything runs.
func (e *Executor) filterInvoices(user types.User, slots types.Slots) types.ActionResult {
	if slots.DateRange != nil && !slots.DateRange.Valid() {
		return types.ActionResult{
			Kind:     types.ResultInvalid,
			Action:   types.ActionFilterInvoices,
			Response: fmt.Sprintf("That date range (%s to %s) doesn't look right. Use YYYY-MM-DD dates with start before end.", slots.DateRange.Start, slots.DateRange.End),
		}
	}
	if slots.Status != "" && !types.KnownInvoiceStatus(slots.Status) {
		return types.ActionResult{
			Kind:     types.ResultInvalid,
			Action:   types.ActionFilterInvoices,
			Response: fmt.Sprintf("I don't recognize the status %q. Known statuses: processed, failed, pending, pending_approval.", slots.Status),
		}
	}

	var matched []types.Invoice
	for _, inv := range e.data.Invoices() {
		if inv.WorkspaceID != user.WorkspaceID {
			continue
		}
		if slots.Vendor != "" && !strings.EqualFold(inv.Vendor, slots.Vendor) {
			continue
		}
		if slots.Status != "" && !strings.EqualFold(string(inv.Status), slots.Status) {
			continue
		}
		if slots.DateRange != nil && !slots.DateRange.Contains(inv.Date) {
			continue
		}
		if slots.Amount != nil && !slots.Amount.Matches(inv.Amount) {
			continue
		}
		matched = append(matched, inv)
	}

	logging.Executor("filter_invoices matched %d invoices for user %s", len(matched), user.ID)

	if len(matched) == 0 {
		return types.ActionResult{
			Kind:     types.ResultEmpty,
			Action:   types.ActionFilterInvoices,
			Response: "No invoices found matching your criteria.",
		}
	}

	ids := make([]string, len(matched))
	var totalAmount float64
	failureReasons := make(map[string]int)
	for i, inv := range matched {
		ids[i] = inv.ID
		totalAmount += inv.Amount
		if inv.FailureReason != "" {
			failureReasons[inv.FailureReason]++
		}
	}

	preview := matched
	if len(preview) > displayCap {
		preview = preview[:displayCap]
	}

	return types.ActionResult{
		Kind:       types.ResultOK,
		Action:     types.ActionFilterInvoices,
		Response:   filterResponse(matched, slots, totalAmount, failureReasons),
		InvoiceIDs: ids,
		Invoices:   preview,
	}
}

func filterResponse(matched []types.Invoice, slots types.Slots, totalAmount float64, failureReasons map[string]int) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("I found %d invoice%s", len(matched), plural(len(matched))))

	if slots.Vendor != "" {
		parts = append(parts, fmt.Sprintf("from %s", slots.Vendor))
	}
	if slots.DateRange != nil {
		parts = append(parts, fmt.Sprintf("for %s to %s", slots.DateRange.Start, slots.DateRange.End))
	}
	if slots.Status != "" {
		parts = append(parts, fmt.Sprintf("with status '%s'", slots.Status))
	}

	response := strings.Join(parts, " ")
	response += fmt.Sprintf(". Total amount: %s", formatAmount(totalAmount))

	if strings.EqualFold(slots.Status, string(types.InvoiceFailed)) && len(failureReasons) > 0 {
		if len(failureReasons) == 1 {
			for reason := range failureReasons {
				response += fmt.Sprintf(". All failures are due to %s", humanizeReason(reason))
			}
		} else {
			reasons := make([]string, 0, len(failureReasons))
			for reason := range failureReasons {
				reasons = append(reasons, reason)
			}
			sort.Strings(reasons)
			described := make([]string, len(reasons))
			for i, reason := range reasons {
				described[i] = fmt.Sprintf("%s (%d)", humanizeReason(reason), failureReasons[reason])
			}
			response += fmt.Sprintf(". Failure reasons: %s", strings.Join(described, ", "))
		}
	}

	return response + "."
}
