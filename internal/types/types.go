// Package types provides shared type definitions used across finsight packages.
// This package exists to break import cycles between intent, executor, and session.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ACTION KINDS - Closed enumeration of everything the resolver can produce
// =============================================================================

// ActionKind identifies one of the recognized assistant actions.
// The set is closed: adding a kind requires updating the permission rules
// and the executor dispatch table, both of which are checked at startup.
type ActionKind string

const (
	ActionFilterInvoices  ActionKind = "filter_invoices"
	ActionExplainFailures ActionKind = "explain_failures"
	ActionCreateTicket    ActionKind = "create_ticket"
	ActionDownloadReport  ActionKind = "download_report"
	ActionGeneralQuestion ActionKind = "general_question"
)

// AllActionKinds lists every action kind the resolver can produce.
// The permission gate validates its rule table against this list so that
// an action without a permission entry is caught at construction time.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionFilterInvoices,
		ActionExplainFailures,
		ActionCreateTicket,
		ActionDownloadReport,
		ActionGeneralQuestion,
	}
}

// Atom returns the Mangle name-constant form of the action kind (e.g. /create_ticket).
func (k ActionKind) Atom() string {
	return "/" + string(k)
}

// =============================================================================
// ROLES
// =============================================================================

// Role is a user's access role. Roles map to permitted action sets in the
// policy rules; an unknown role is permitted nothing.
type Role string

const (
	RoleFinancialAnalyst Role = "financial_analyst"
	RoleFinanceManager   Role = "finance_manager"
	RoleReportViewer     Role = "report_viewer"
)

// Atom returns the Mangle name-constant form of the role (e.g. /report_viewer).
func (r Role) Atom() string {
	return "/" + string(r)
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceStatus is the processing state of an invoice.
type InvoiceStatus string

const (
	InvoiceProcessed       InvoiceStatus = "processed"
	InvoiceFailed          InvoiceStatus = "failed"
	InvoicePending         InvoiceStatus = "pending"
	InvoicePendingApproval InvoiceStatus = "pending_approval"
)

// KnownInvoiceStatus reports whether s is a recognized invoice status.
func KnownInvoiceStatus(s string) bool {
	switch InvoiceStatus(strings.ToLower(s)) {
	case InvoiceProcessed, InvoiceFailed, InvoicePending, InvoicePendingApproval:
		return true
	}
	return false
}

// Invoice is a single vendor invoice. Invoices are immutable once loaded;
// the executor only ever reads them.
type Invoice struct {
	ID            string        `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	Vendor        string        `json:"vendor"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Status        InvoiceStatus `json:"status"`
	GSTIN         string        `json:"gstin,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Date          string        `json:"date"` // ISO date (2006-01-02); lexicographic order == chronological order
	WorkspaceID   string        `json:"workspace_id"`
}

// Failure reasons recorded on failed invoices.
const (
	FailureMissingGSTIN         = "missing_gstin"
	FailureInvalidAmount        = "invalid_amount"
	FailureDuplicateInvoice     = "duplicate_invoice"
	FailureExpiredPO            = "expired_po"
	FailureMissingDocumentation = "missing_documentation"
)

// =============================================================================
// VENDORS
// =============================================================================

// Vendor is a supplier referenced by invoices.
type Vendor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GSTIN   string `json:"gstin,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// =============================================================================
// TICKETS
// =============================================================================

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
)

// CanTransition reports whether a ticket may move from its current status to next.
// The only legal path is open -> in_progress -> resolved.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketOpen:
		return next == TicketInProgress
	case TicketInProgress:
		return next == TicketResolved
	}
	return false
}

// TicketUpdate is one entry in a ticket's update log.
type TicketUpdate struct {
	Timestamp time.Time    `json:"timestamp"`
	Status    TicketStatus `json:"status"`
	Note      string       `json:"note"`
	UpdatedBy string       `json:"updated_by"`
}

// Ticket is a support ticket created by the assistant. Creation is atomic:
// a ticket is either fully created and appended, or not created at all.
type Ticket struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Priority         string         `json:"priority"` // low, medium, high
	Status           TicketStatus   `json:"status"`
	CreatedBy        string         `json:"created_by"`
	AssignedTo       string         `json:"assigned_to"`
	Notify           bool           `json:"notify"` // user asked to be notified on resolution
	WorkspaceID      string         `json:"workspace_id"`
	AffectedInvoices []string       `json:"affected_invoices,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`
	Updates          []TicketUpdate `json:"updates,omitempty"`
}

// =============================================================================
// USERS
// =============================================================================

// User is an assistant user. The role determines the permitted action set.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	WorkspaceID string `json:"workspace_id"`
}

// FirstName returns the user's given name for greetings.
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// =============================================================================
// RESOLVED ACTIONS AND SLOTS
// =============================================================================

// DateRange is an inclusive [Start, End] range of ISO dates (2006-01-02).
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether the ISO date falls inside the range, bounds inclusive.
func (r DateRange) Contains(date string) bool {
	return r.Start <= date && date <= r.End
}

// Valid reports whether both bounds parse as ISO dates and are ordered.
func (r DateRange) Valid() bool {
	if _, err := time.Parse("2006-01-02", r.Start); err != nil {
		return false
	}
	if _, err := time.Parse("2006-01-02", r.End); err != nil {
		return false
	}
	return r.Start <= r.End
}

// AmountFilter is a single comparator over the invoice amount.
type AmountFilter struct {
	Op    string  `json:"op"` // ">", "<", "="
	Value float64 `json:"value"`
}

// Matches applies the comparator to an amount.
func (f AmountFilter) Matches(amount float64) bool {
	switch f.Op {
	case ">":
		return amount > f.Value
	case "<":
		return amount < f.Value
	case "=":
		return amount == f.Value
	}
	return false
}

// Slots holds the parameters extracted from an utterance. Zero values mean
// "unconstrained": an unspecified slot imposes no filter predicate.
type Slots struct {
	Vendor     string        `json:"vendor,omitempty"`
	Status     string        `json:"status,omitempty"`
	DateRange  *DateRange    `json:"date_range,omitempty"`
	Amount     *AmountFilter `json:"amount,omitempty"`
	Notify     bool          `json:"notify,omitempty"`
	ReportType string        `json:"report_type,omitempty"`
	Anaphoric  bool          `json:"anaphoric,omitempty"` // utterance said "this"/"these"/"it"
}

// ResolvedAction is the resolver's output: an action kind plus its slots.
type ResolvedAction struct {
	Kind  ActionKind `json:"kind"`
	Slots Slots      `json:"slots"`
}

// =============================================================================
// ACTION RESULTS
// =============================================================================

// ResultKind classifies the outcome of a turn. There is no fatal class:
// every failure path returns a result carrying a user-facing message.
type ResultKind string

const (
	ResultOK           ResultKind = "ok"
	ResultEmpty        ResultKind = "empty"         // read action matched nothing; not an error
	ResultUnrecognized ResultKind = "unrecognized"  // no trigger phrase matched
	ResultInvalid      ResultKind = "invalid"       // malformed slot or missing reference; nothing executed
	ResultDenied       ResultKind = "denied"        // permission gate refused the action
)

// FailureAnalysis summarizes why a set of invoices failed.
type FailureAnalysis struct {
	TotalInvoices   int            `json:"total_invoices"`
	TotalAmount     float64        `json:"total_amount"`
	FailureReasons  map[string]int `json:"failure_reasons"`
	AffectedVendors []string       `json:"affected_vendors"`
}

// ReportSummary carries the aggregate figures of a generated report.
type ReportSummary struct {
	TotalInvoices     int     `json:"total_invoices"`
	ProcessedInvoices int     `json:"processed_invoices"`
	FailedInvoices    int     `json:"failed_invoices"`
	TotalAmount       float64 `json:"total_amount"`
	ProcessedAmount   float64 `json:"processed_amount"`
	ComplianceRate    float64 `json:"compliance_rate"`
}

// Report is a generated report artifact.
type Report struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	GeneratedAt time.Time     `json:"generated_at"`
	GeneratedBy string        `json:"generated_by"`
	WorkspaceID string        `json:"workspace_id"`
	Summary     ReportSummary `json:"summary"`
}

// ActionResult is the payload returned for every processed turn.
type ActionResult struct {
	Kind     ResultKind `json:"kind"`
	Action   ActionKind `json:"action,omitempty"`
	Response string     `json:"response"`

	// Read results
	InvoiceIDs []string  `json:"invoice_ids,omitempty"`
	Invoices   []Invoice `json:"invoices,omitempty"` // capped preview for display

	// Mutations and aggregates
	Ticket   *Ticket          `json:"ticket,omitempty"`
	Analysis *FailureAnalysis `json:"analysis,omitempty"`
	Report   *Report          `json:"report,omitempty"`

	// OfferTicket marks that the response ends with a proactive offer to
	// create a ticket; an affirmative next turn accepts it.
	OfferTicket bool `json:"offer_ticket,omitempty"`
}

// Mutated reports whether the turn changed any durable state.
func (r ActionResult) Mutated() bool {
	return r.Ticket != nil
}

// =============================================================================
// SESSION TURNS
// =============================================================================

// Turn records one processed utterance and its outcome.
type Turn struct {
	Utterance string     `json:"utterance"`
	Action    ActionKind `json:"action,omitempty"`
	Result    ResultKind `json:"result"`
	Response  string     `json:"response"`
	Timestamp time.Time  `json:"timestamp"`
}

// Summary returns a one-line description of the turn for history displays.
func (t Turn) Summary() string {
	action := string(t.Action)
	if action == "" {
		action = "unrecognized"
	}
	return fmt.Sprintf("%s -> %s (%s)", t.Utterance, action, t.Result)
}
