// Package intent maps natural-language utterances to actions and slots.
// Resolution is deterministic pattern matching over a closed trigger table;
// there is no model call and no scoring, so the same utterance always
// resolves to the same action.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"finsight/internal/logging"
	"finsight/internal/types"
)

// affirmatives are bare acceptances. After the assistant offers to create a
// ticket, any of these resolves to create_ticket.
var affirmatives = map[string]struct{}{
	"yes":        {},
	"y":          {},
	"sure":       {},
	"ok":         {},
	"okay":       {},
	"please":     {},
	"yes please": {},
	"create it":  {},
	"do it":      {},
}

// trigger pairs an action kind with the phrases that select it. The longest
// matching phrase across the table wins; declaration order breaks ties.
type trigger struct {
	kind     types.ActionKind
	patterns []*regexp.Regexp
}

var triggers = []trigger{
	{
		kind: types.ActionFilterInvoices,
		patterns: compile(
			`filter\s+invoices?`,
			`show\s+(?:me\s+)?(?:\w+\s+)*invoices?`,
			`find\s+invoices?`,
			`get\s+invoices?`,
			`list\s+(?:\w+\s+)*invoices?`,
		),
	},
	{
		kind: types.ActionExplainFailures,
		patterns: compile(
			`why\s+did\s+(?:this|these|they|it)\s+fail`,
			`what\s+(?:caused|made)\s+(?:this|these|them|it)\s+(?:to\s+)?fail`,
			`explain\s+(?:the\s+)?failures?`,
			`what\s+went\s+wrong`,
		),
	},
	{
		kind: types.ActionCreateTicket,
		patterns: compile(
			`create\s+(?:a\s+)?(?:support\s+)?ticket`,
			`open\s+(?:a\s+)?ticket`,
			`file\s+(?:a\s+)?ticket`,
			`raise\s+(?:a\s+)?ticket`,
			`report\s+(?:this\s+)?(?:issue|problem)`,
		),
	},
	{
		kind: types.ActionDownloadReport,
		patterns: compile(
			`download\s+(?:the\s+)?(.+?)\s+report`,
			`generate\s+(?:and\s+)?download\s+(?:the\s+)?(.+?)\s+report`,
			`get\s+(?:the\s+)?(.+?)\s+report`,
			`export\s+(?:the\s+)?(.+?)\s+report`,
		),
	},
	{
		kind: types.ActionGeneralQuestion,
		patterns: compile(
			`what\s+is\s+`,
			`how\s+(?:does|do)\s+.+\s+work`,
			`tell\s+me\s+about\s+`,
			`^help$`,
			`what\s+can\s+you\s+do`,
		),
	},
}

// Slot extraction patterns, applied per action kind.
var (
	explicitRangeRe = regexp.MustCompile(`(?:from\s+)?(\d{4}-\d{2}-\d{2})\s+to\s+(\d{4}-\d{2}-\d{2})`)
	lastMonthRe     = regexp.MustCompile(`last\s+month`)
	thisMonthRe     = regexp.MustCompile(`this\s+month`)

	vendorQuotedRe = regexp.MustCompile(`vendor\s*[=:]\s*['"]([^'"]+)['"]`)
	vendorBareRe   = regexp.MustCompile(`vendor\s*[=:]\s*([A-Za-z][A-Za-z0-9 ]*[A-Za-z0-9])`)
	// Proper-noun form: "invoices from IndiSky". Case-sensitive on purpose
	// so "for last month" never reads as a vendor.
	vendorFromRe = regexp.MustCompile(`from\s+([A-Z][A-Za-z0-9]*(?:\s+[A-Z][A-Za-z0-9]*)*)`)

	statusQuotedRe    = regexp.MustCompile(`status\s*[=:]\s*['"]([^'"]+)['"]`)
	statusBareRe      = regexp.MustCompile(`status\s*[=:]\s*([^,\s.]+)`)
	pendingApprovalRe = regexp.MustCompile(`pending\s+approval`)
	statusWordRe      = regexp.MustCompile(`\b(failed|processed|pending|completed)\b`)

	amountRe     = regexp.MustCompile(`amount\s*([<>=])\s*(\d+(?:\.\d+)?)`)
	reportTypeRe = regexp.MustCompile(`(?:download|get|export)\s+(?:the\s+)?(.+?)\s+report`)

	notifyRe    = regexp.MustCompile(`notify\s+me(?:\s+when\s+(?:it'?s\s+)?(?:fixed|resolved|done))?`)
	anaphoricRe = regexp.MustCompile(`\b(?:this|these|them|they|it)\b`)
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Resolver turns an utterance into a resolved action. It carries the date
// anchoring mode and a clock so relative phrases resolve deterministically.
type Resolver struct {
	anchor Anchor
	clock  Clock
}

// NewResolver creates a resolver. A nil clock uses the wall clock.
func NewResolver(anchor Anchor, clock Clock) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	if anchor != AnchorRolling {
		anchor = AnchorCalendar
	}
	return &Resolver{anchor: anchor, clock: clock}
}

// Resolve maps the utterance to an action and its slots. The second return
// is false when no trigger matched; the caller reports the turn as
// unrecognized rather than guessing.
func (r *Resolver) Resolve(utterance string) (types.ResolvedAction, bool) {
	trimmed := strings.TrimSpace(utterance)
	lower := strings.ToLower(trimmed)

	if lower == "" {
		return types.ResolvedAction{}, false
	}

	// A bare acceptance means "yes, create that ticket".
	if _, ok := affirmatives[strings.TrimRight(lower, ".!")]; ok {
		logging.IntentDebug("Affirmative %q resolved to %s", trimmed, types.ActionCreateTicket)
		return types.ResolvedAction{Kind: types.ActionCreateTicket, Slots: types.Slots{Anaphoric: true}}, true
	}

	// Longest matching phrase wins; a strictly longer match displaces an
	// earlier trigger, equal lengths keep the first-declared one.
	var (
		matched bool
		best    types.ActionKind
		bestLen int
	)
	for _, trig := range triggers {
		for _, pattern := range trig.patterns {
			m := pattern.FindString(lower)
			if m == "" {
				continue
			}
			if !matched || len(m) > bestLen {
				matched = true
				best = trig.kind
				bestLen = len(m)
			}
		}
	}
	if !matched {
		logging.Intent("No trigger matched %q", trimmed)
		return types.ResolvedAction{}, false
	}

	action := types.ResolvedAction{
		Kind:  best,
		Slots: r.extractSlots(trimmed, lower, best),
	}
	logging.Intent("Resolved %q to %s", trimmed, action.Kind)
	return action, true
}

func (r *Resolver) extractSlots(original, lower string, kind types.ActionKind) types.Slots {
	var slots types.Slots
	slots.Anaphoric = anaphoricRe.MatchString(lower)

	switch kind {
	case types.ActionFilterInvoices:
		slots.Vendor = extractVendor(original, lower)
		slots.Status = extractStatus(lower)
		slots.DateRange = r.extractDateRange(lower)
		slots.Amount = extractAmount(lower)

	case types.ActionCreateTicket:
		slots.Notify = notifyRe.MatchString(lower)

	case types.ActionDownloadReport:
		slots.ReportType = extractReportType(lower)
	}

	return slots
}

func (r *Resolver) extractDateRange(lower string) *types.DateRange {
	if m := explicitRangeRe.FindStringSubmatch(lower); m != nil {
		return &types.DateRange{Start: m[1], End: m[2]}
	}
	if lastMonthRe.MatchString(lower) {
		dr := lastMonth(r.anchor, r.clock())
		return &dr
	}
	if thisMonthRe.MatchString(lower) {
		dr := thisMonth(r.clock())
		return &dr
	}
	return nil
}

func extractVendor(original, lower string) string {
	if m := vendorQuotedRe.FindStringSubmatch(original); m != nil {
		return cleanValue(m[1])
	}
	if m := vendorBareRe.FindStringSubmatch(original); m != nil {
		return cleanValue(m[1])
	}
	if m := vendorFromRe.FindStringSubmatch(original); m != nil {
		return cleanValue(m[1])
	}
	return ""
}

func extractStatus(lower string) string {
	if m := statusQuotedRe.FindStringSubmatch(lower); m != nil {
		return normalizeStatus(m[1])
	}
	if m := statusBareRe.FindStringSubmatch(lower); m != nil {
		return normalizeStatus(m[1])
	}
	if pendingApprovalRe.MatchString(lower) {
		return string(types.InvoicePendingApproval)
	}
	if m := statusWordRe.FindStringSubmatch(lower); m != nil {
		return normalizeStatus(m[1])
	}
	return ""
}

func normalizeStatus(s string) string {
	s = strings.ToLower(cleanValue(s))
	if s == "completed" {
		return string(types.InvoiceProcessed)
	}
	if strings.ReplaceAll(s, " ", "_") == string(types.InvoicePendingApproval) {
		return string(types.InvoicePendingApproval)
	}
	return s
}

func extractAmount(lower string) *types.AmountFilter {
	m := amountRe.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}
	return &types.AmountFilter{Op: m[1], Value: value}
}

func extractReportType(lower string) string {
	m := reportTypeRe.FindStringSubmatch(lower)
	if m == nil {
		return "compliance_status"
	}
	if strings.Contains(m[1], "compliance") || strings.Contains(m[1], "fixed") {
		return "compliance_status"
	}
	return "general"
}

// cleanValue strips surrounding quotes and trailing punctuation from an
// extracted slot value.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimRight(v, ".,!?")
	v = strings.Trim(v, `'"`)
	return strings.TrimSpace(v)
}
