// Package policy implements the permission gate as a small Datalog program
// evaluated by Google Mangle. Roles and action kinds are Mangle name
// constants; authorization is a pure lookup over derived permitted/2 facts.
package policy

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Engine wraps a fully-evaluated Mangle program. The program is compiled and
// evaluated once at construction; afterwards the engine only answers
// read-only fact queries, so it needs no re-evaluation path.
type Engine struct {
	mu             sync.RWMutex
	store          factstore.FactStore
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
}

// NewEngine parses, analyzes, and evaluates the given Mangle program.
func NewEngine(program string) (*Engine, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(program)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy program: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze policy program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	if _, err := mengine.EvalProgramWithStats(programInfo, store); err != nil {
		return nil, fmt.Errorf("failed to evaluate policy program: %w", err)
	}

	e := &Engine{
		store:          store,
		programInfo:    programInfo,
		predicateIndex: make(map[string]ast.PredicateSym, len(programInfo.Decls)),
	}
	for sym := range programInfo.Decls {
		e.predicateIndex[sym.Symbol] = sym
	}
	return e, nil
}

// Facts retrieves all facts for a given predicate.
func (e *Engine) Facts(predicate string) ([][]interface{}, error) {
	e.mu.RLock()
	sym, ok := e.predicateIndex[predicate]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}

	var results [][]interface{}
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		args := make([]interface{}, len(atom.Args))
		for i, arg := range atom.Args {
			args[i] = baseTermToInterface(arg)
		}
		results = append(results, args)
		return nil
	})
	return results, err
}

// HasFact reports whether a ground fact with the given name-constant
// arguments is present (asserted or derived).
func (e *Engine) HasFact(predicate string, args ...string) (bool, error) {
	facts, err := e.Facts(predicate)
	if err != nil {
		return false, err
	}

	for _, fact := range facts {
		if len(fact) != len(args) {
			continue
		}
		match := true
		for i, want := range args {
			got, ok := fact[i].(string)
			if !ok || got != want {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func baseTermToInterface(term ast.BaseTerm) interface{} {
	switch v := term.(type) {
	case ast.Constant:
		return constantToInterface(v)
	case ast.Variable:
		return v.Symbol
	default:
		return fmt.Sprintf("%v", term)
	}
}

func constantToInterface(constant ast.Constant) interface{} {
	switch constant.Type {
	case ast.StringType, ast.NameType, ast.BytesType:
		return constant.Symbol
	case ast.NumberType:
		return constant.NumValue
	case ast.Float64Type:
		return math.Float64frombits(uint64(constant.NumValue))
	default:
		return constant.String()
	}
}
