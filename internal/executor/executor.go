// Package executor runs resolved actions against the dataset. Read actions
// never mutate anything; the only mutation in the system is ticket creation,
// and it is atomic. Every path returns an ActionResult with a user-facing
// response, never a bare error.
package executor

import (
	"fmt"
	"strings"
	"time"

	"finsight/internal/dataset"
	"finsight/internal/logging"
	"finsight/internal/types"
)

// TicketPersister is the durable sink for created tickets. *store.LocalStore
// satisfies it; a nil persister keeps tickets memory-only.
type TicketPersister interface {
	SaveTicket(t types.Ticket) error
}

// Referents carries the conversational state an action may refer back to.
// The executor reads it; the caller owns updating the session afterwards.
type Referents struct {
	LastResultSet   []string
	LastFilterSlots types.Slots
	LastAnalysis    *types.FailureAnalysis
}

// Executor dispatches resolved actions. It is safe for concurrent use; all
// mutable state lives in the dataset store and the persister.
type Executor struct {
	data      *dataset.Store
	persister TicketPersister
	clock     func() time.Time
}

// New creates an executor. A nil clock uses the wall clock.
func New(data *dataset.Store, persister TicketPersister, clock func() time.Time) *Executor {
	if clock == nil {
		clock = time.Now
	}
	return &Executor{data: data, persister: persister, clock: clock}
}

// Execute runs the action for the user and returns the result. The caller
// has already passed the permission gate; the executor only scopes data to
// the user's workspace.
func (e *Executor) Execute(user types.User, action types.ResolvedAction, refs Referents) types.ActionResult {
	timer := logging.StartTimer(logging.CategoryExecutor, string(action.Kind))
	defer timer.Stop()

	switch action.Kind {
	case types.ActionFilterInvoices:
		return e.filterInvoices(user, action.Slots)
	case types.ActionExplainFailures:
		return e.explainFailures(user, refs)
	case types.ActionCreateTicket:
		return e.createTicket(user, action.Slots, refs)
	case types.ActionDownloadReport:
		return e.downloadReport(user, action.Slots, refs)
	case types.ActionGeneralQuestion:
		return e.generalQuestion(user)
	}

	// Unreachable when the gate validated the kind, but never panic on a turn.
	logging.Get(logging.CategoryExecutor).Error("No handler for action %q", action.Kind)
	return types.ActionResult{
		Kind:     types.ResultInvalid,
		Action:   action.Kind,
		Response: fmt.Sprintf("I can't execute the action %q.", action.Kind),
	}
}

func (e *Executor) generalQuestion(user types.User) types.ActionResult {
	var b strings.Builder
	b.WriteString("I can help you with:\n")
	b.WriteString("- Filtering invoices: 'Filter invoices for last month, vendor=IndiSky, status=failed'\n")
	b.WriteString("- Explaining issues: 'Why did these fail?'\n")
	b.WriteString("- Creating tickets: 'Create a ticket and notify me when fixed'\n")
	b.WriteString("- Downloading reports: 'Download the compliance report'\n")
	b.WriteString("\nWhat would you like to do?")

	return types.ActionResult{
		Kind:     types.ResultOK,
		Action:   types.ActionGeneralQuestion,
		Response: b.String(),
	}
}

// formatAmount renders an amount as ₹ with thousands separators and two
// decimal places.
func formatAmount(amount float64) string {
	return "₹" + groupThousands(fmt.Sprintf("%.2f", amount))
}

// formatAmountWhole renders an amount as ₹ with no decimal places.
func formatAmountWhole(amount float64) string {
	return "₹" + groupThousands(fmt.Sprintf("%.0f", amount))
}

func groupThousands(s string) string {
	intPart := s
	frac := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	if len(intPart) <= 3 {
		return intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + frac
}

// plural returns "s" for counts other than one.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// humanizeReason turns a failure reason code into readable words.
func humanizeReason(reason string) string {
	return strings.ReplaceAll(reason, "_", " ")
}
