package policy

import (
	"fmt"
	"os"

	"finsight/internal/logging"
	"finsight/internal/types"
)

// basePolicy is the built-in permission rule table. Every action kind the
// resolver can produce must appear for at least one role; NewGate verifies
// this against types.AllActionKinds at construction.
const basePolicy = `
# finsight permission policy.
# permitted(Role, Action) derives the allowed action set per role.

permitted(Role, Action) :- role_permits(Role, Action).

# Financial analysts run the full pipeline.
role_permits(/financial_analyst, /filter_invoices).
role_permits(/financial_analyst, /explain_failures).
role_permits(/financial_analyst, /create_ticket).
role_permits(/financial_analyst, /download_report).
role_permits(/financial_analyst, /general_question).

# Finance managers have the same surface as analysts.
role_permits(/finance_manager, /filter_invoices).
role_permits(/finance_manager, /explain_failures).
role_permits(/finance_manager, /create_ticket).
role_permits(/finance_manager, /download_report).
role_permits(/finance_manager, /general_question).

# Report viewers are read-only: reports and help, nothing that mutates.
role_permits(/report_viewer, /download_report).
role_permits(/report_viewer, /general_question).
`

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string // user-visible denial reason; empty when allowed
}

// Gate answers "may this role perform this action" against the rule table.
// It is pure: no side effects, and denial is always reported back as a
// message, never silently dropped and never escalated to a fatal error.
type Gate struct {
	engine *Engine
	known  map[types.ActionKind]struct{}
}

// NewGate builds the gate from the built-in policy.
func NewGate() (*Gate, error) {
	return newGate(basePolicy)
}

// NewGateWithRulesFile builds the gate from the built-in policy plus extra
// rules appended from a file (deployment-specific role grants).
func NewGateWithRulesFile(path string) (*Gate, error) {
	if path == "" {
		return NewGate()
	}
	extra, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy rules %s: %w", path, err)
	}
	return newGate(basePolicy + "\n# Appended rules (" + path + ")\n" + string(extra))
}

func newGate(program string) (*Gate, error) {
	timer := logging.StartTimer(logging.CategoryPolicy, "NewGate")
	defer timer.Stop()

	engine, err := NewEngine(program)
	if err != nil {
		return nil, err
	}

	g := &Gate{
		engine: engine,
		known:  make(map[types.ActionKind]struct{}),
	}
	for _, kind := range types.AllActionKinds() {
		g.known[kind] = struct{}{}
	}

	// Every resolver-producible action kind must appear in the rule table
	// for at least one role. A kind nobody may perform is a policy bug.
	facts, err := engine.Facts("role_permits")
	if err != nil {
		return nil, err
	}
	granted := make(map[string]struct{}, len(facts))
	for _, fact := range facts {
		if len(fact) == 2 {
			if action, ok := fact[1].(string); ok {
				granted[action] = struct{}{}
			}
		}
	}
	for kind := range g.known {
		if _, ok := granted[kind.Atom()]; !ok {
			return nil, fmt.Errorf("policy has no permission entry for action %s", kind)
		}
	}

	logging.Policy("Gate ready: %d role_permits facts, %d action kinds", len(facts), len(g.known))
	return g, nil
}

// Authorize checks whether the role may perform the action. Unknown actions
// are always denied, never implicitly allowed.
func (g *Gate) Authorize(role types.Role, kind types.ActionKind) Decision {
	if _, ok := g.known[kind]; !ok {
		logging.Policy("Denied unknown action %q for role %s", kind, role)
		return Decision{Allowed: false, Reason: fmt.Sprintf("I don't recognize the action %q.", kind)}
	}

	allowed, err := g.engine.HasFact("permitted", role.Atom(), kind.Atom())
	if err != nil {
		// Query failure means the rule table is unusable for this check;
		// fail closed with a user-visible reason.
		logging.Get(logging.CategoryPolicy).Error("Authorize query failed: %v", err)
		return Decision{Allowed: false, Reason: "Permission check failed; action not executed."}
	}

	if !allowed {
		logging.Policy("Denied %s for role %s", kind, role)
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("Your role (%s) doesn't have permission to %s. Ask an administrator if you need access.", role, kind),
		}
	}

	logging.PolicyDebug("Allowed %s for role %s", kind, role)
	return Decision{Allowed: true}
}

// AllowedActions returns the action kinds the role may perform, for display
// in the UI's capability panel.
func (g *Gate) AllowedActions(role types.Role) []types.ActionKind {
	var allowed []types.ActionKind
	for _, kind := range types.AllActionKinds() {
		if g.Authorize(role, kind).Allowed {
			allowed = append(allowed, kind)
		}
	}
	return allowed
}
