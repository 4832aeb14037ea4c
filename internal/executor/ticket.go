package executor

import (
	"fmt"
	"strings"

	"finsight/internal/logging"
	"finsight/internal/types"

	"github.com/google/uuid"
)

// createTicket is the only mutating action. The ticket is persisted before
// it becomes visible in the dataset, so a failure leaves no partial record.
func (e *Executor) createTicket(user types.User, slots types.Slots, refs Referents) types.ActionResult {
	title := "General Support Request"
	description := "Support request created via assistant"
	priority := "medium"

	// Context-aware details when the conversation analyzed a compliance issue.
	if refs.LastAnalysis != nil && refs.LastAnalysis.FailureReasons[types.FailureMissingGSTIN] > 0 {
		title = "Missing GSTIN in vendor invoices"
		vendor := "vendor"
		if len(refs.LastAnalysis.AffectedVendors) > 0 {
			vendor = refs.LastAnalysis.AffectedVendors[0]
		}
		description = fmt.Sprintf(
			"%d invoices from %s failed processing due to missing GSTIN. Total amount affected: %s. Requires vendor to provide GSTIN and resubmit invoices.",
			refs.LastAnalysis.TotalInvoices, vendor, formatAmount(refs.LastAnalysis.TotalAmount),
		)
		priority = "high"
	}

	now := e.clock()
	ticket := types.Ticket{
		Title:            title,
		Description:      description,
		Priority:         priority,
		Status:           types.TicketOpen,
		CreatedBy:        user.ID,
		AssignedTo:       "compliance_team",
		Notify:           slots.Notify,
		WorkspaceID:      user.WorkspaceID,
		AffectedInvoices: refs.LastResultSet,
		CreatedAt:        now,
		Updates: []types.TicketUpdate{{
			Timestamp: now,
			Status:    types.TicketOpen,
			Note:      "Ticket created automatically by assistant",
			UpdatedBy: "system",
		}},
	}

	// A fresh random id each attempt; retry the unlikely collision.
	var appended bool
	for attempt := 0; attempt < 3 && !appended; attempt++ {
		ticket.ID = fmt.Sprintf("TKT-%d-%s", now.Year(), strings.ToUpper(uuid.NewString()[:3]))
		if _, exists := e.data.TicketByID(ticket.ID); exists {
			continue
		}
		if e.persister != nil {
			if err := e.persister.SaveTicket(ticket); err != nil {
				logging.Get(logging.CategoryExecutor).Error("Ticket persist failed: %v", err)
				return types.ActionResult{
					Kind:     types.ResultInvalid,
					Action:   types.ActionCreateTicket,
					Response: "I couldn't save the ticket, so nothing was created. Please try again.",
				}
			}
		}
		if err := e.data.AppendTicket(ticket); err != nil {
			logging.Get(logging.CategoryExecutor).Warn("Ticket id collision on %s, retrying", ticket.ID)
			continue
		}
		appended = true
	}
	if !appended {
		return types.ActionResult{
			Kind:     types.ResultInvalid,
			Action:   types.ActionCreateTicket,
			Response: "I couldn't allocate a ticket id, so nothing was created. Please try again.",
		}
	}

	logging.Executor("Created ticket %s for user %s (priority=%s)", ticket.ID, user.ID, priority)

	response := fmt.Sprintf("Created support ticket #%s: '%s'. ", ticket.ID, title)
	if slots.Notify {
		response += "I'll notify you when the vendor provides updated invoices. "
	}
	response += "Ticket assigned to compliance team."

	created := ticket
	return types.ActionResult{
		Kind:     types.ResultOK,
		Action:   types.ActionCreateTicket,
		Response: response,
		Ticket:   &created,
	}
}
