// Package assistant orchestrates the turn pipeline: resolve the utterance,
// authorize the action, execute it, and record the turn. Every utterance
// produces exactly one turn and one user-facing response, whatever happens
// in between.
package assistant

import (
	"fmt"
	"strings"

	"finsight/internal/dataset"
	"finsight/internal/executor"
	"finsight/internal/intent"
	"finsight/internal/logging"
	"finsight/internal/policy"
	"finsight/internal/session"
	"finsight/internal/types"
)

// Assistant is the demo's core. It holds no per-turn state of its own; all
// conversation state lives in the session manager.
type Assistant struct {
	data     *dataset.Store
	resolver *intent.Resolver
	gate     *policy.Gate
	exec     *executor.Executor
	sessions *session.Manager
}

// New wires the pipeline together.
func New(data *dataset.Store, resolver *intent.Resolver, gate *policy.Gate, exec *executor.Executor, sessions *session.Manager) *Assistant {
	return &Assistant{
		data:     data,
		resolver: resolver,
		gate:     gate,
		exec:     exec,
		sessions: sessions,
	}
}

// ProcessTurn runs one utterance through the pipeline for the user. The
// returned result always carries a response; errors surface as result kinds,
// not as Go errors, so the conversation never dies mid-session.
func (a *Assistant) ProcessTurn(user types.User, utterance string) types.ActionResult {
	timer := logging.StartTimer(logging.CategoryBoot, "ProcessTurn")
	defer timer.Stop()

	sess, err := a.sessions.Get(user)
	if err != nil {
		// Session creation failing is the one pipeline fault with no session
		// to record into.
		logging.Get(logging.CategorySession).Error("ProcessTurn: no session for %s: %v", user.ID, err)
		return types.ActionResult{
			Kind:     types.ResultInvalid,
			Response: "Something went wrong starting your session. Please try again.",
		}
	}

	result := a.process(user, sess, utterance)

	turn := types.Turn{
		Utterance: utterance,
		Action:    result.Action,
		Result:    result.Kind,
		Response:  result.Response,
	}
	if err := a.sessions.Append(sess, turn); err != nil {
		logging.Get(logging.CategorySession).Error("ProcessTurn: failed to append turn: %v", err)
	}

	return result
}

func (a *Assistant) process(user types.User, sess *session.Session, utterance string) types.ActionResult {
	resolved, ok := a.resolver.Resolve(utterance)
	if !ok {
		return types.ActionResult{
			Kind:     types.ResultUnrecognized,
			Response: "I'm not sure how to help with that. Try asking me to filter invoices, explain failures, create tickets, or download reports.",
		}
	}

	if decision := a.gate.Authorize(user.Role, resolved.Kind); !decision.Allowed {
		return types.ActionResult{
			Kind:     types.ResultDenied,
			Action:   resolved.Kind,
			Response: decision.Reason,
		}
	}

	refs := executor.Referents{
		LastResultSet:   sess.LastResultSet,
		LastFilterSlots: sess.LastFilterSlots,
		LastAnalysis:    sess.LastAnalysis,
	}
	result := a.exec.Execute(user, resolved, refs)

	// Update the conversational referents from the outcome.
	switch resolved.Kind {
	case types.ActionFilterInvoices:
		if result.Kind == types.ResultOK || result.Kind == types.ResultEmpty {
			a.sessions.RecordResultSet(sess, result.InvoiceIDs, resolved.Slots)
		}
	case types.ActionExplainFailures:
		if result.Analysis != nil {
			a.sessions.RecordAnalysis(sess, result.Analysis, result.OfferTicket)
		}
	case types.ActionCreateTicket:
		if result.Kind == types.ResultOK {
			a.sessions.ClearTicketOffer(sess)
		}
	}

	return result
}

// Welcome renders the greeting shown when a user starts (or switches to) a
// session, listing what their role may do.
func (a *Assistant) Welcome(user types.User) string {
	allowed := a.gate.AllowedActions(user.Role)
	verbs := make([]string, 0, len(allowed))
	for _, kind := range allowed {
		switch kind {
		case types.ActionFilterInvoices:
			verbs = append(verbs, "filter invoices")
		case types.ActionExplainFailures:
			verbs = append(verbs, "explain failures")
		case types.ActionCreateTicket:
			verbs = append(verbs, "create tickets")
		case types.ActionDownloadReport:
			verbs = append(verbs, "download reports")
		case types.ActionGeneralQuestion:
			verbs = append(verbs, "answer questions")
		}
	}
	greeting := fmt.Sprintf("Hi %s! I'm your financial operations assistant. As a %s you can: %s.",
		user.FirstName(), strings.ReplaceAll(string(user.Role), "_", " "), strings.Join(verbs, ", "))

	if open := a.data.Tickets(user.WorkspaceID, types.TicketOpen); len(open) > 0 {
		greeting += fmt.Sprintf(" Your workspace has %d open support ticket%s.", len(open), plural(len(open)))
	}
	for _, t := range a.data.Tickets(user.WorkspaceID, types.TicketResolved) {
		if t.Notify && t.CreatedBy == user.ID {
			greeting += fmt.Sprintf(" Update: ticket #%s ('%s') has been resolved.", t.ID, t.Title)
		}
	}

	return greeting
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// ContextSummary exposes the session context line for the UI.
func (a *Assistant) ContextSummary(user types.User) string {
	sess, err := a.sessions.Get(user)
	if err != nil {
		return ""
	}
	return a.sessions.ContextSummary(sess)
}

// Users lists the demo users for role switching.
func (a *Assistant) Users() []types.User {
	return a.data.Users()
}

// UserByID resolves a demo user.
func (a *Assistant) UserByID(id string) (types.User, bool) {
	return a.data.UserByID(id)
}
