package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/veto-sh/veto/internal/models"
)

// exprSet holds CEL programs compiled from rule `expr` fields, keyed by
// source text. Compilation happens once at engine construction; a compile
// failure aborts config load rather than silently dropping the rule.
type exprSet struct {
	env      *cel.Env
	programs map[string]cel.Program
}

func compileExprs(rs *models.RuleSet) (*exprSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	set := &exprSet{env: env, programs: make(map[string]cel.Program)}

	for _, level := range models.Tiers() {
		for _, rule := range rs.Tier(level) {
			if rule.Expr == "" {
				continue
			}
			if _, ok := set.programs[rule.Expr]; ok {
				continue
			}

			ast, issues := env.Compile(rule.Expr)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("rule %q: expr compile error: %w", rule.Category, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("rule %q: expr program error: %w", rule.Category, err)
			}
			set.programs[rule.Expr] = prg
		}
	}

	return set, nil
}

// eval runs a compiled expression against the command. Evaluation errors and
// non-boolean results count as no-match; the expression was already validated
// at compile time, so runtime failures here are input-dependent (e.g. a type
// error on a specific command) and must not block classification.
func (s *exprSet) eval(expr, command string) bool {
	prg, ok := s.programs[expr]
	if !ok {
		return false
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"input": map[string]interface{}{"command": command},
	})
	if err != nil {
		return false
	}

	matched, ok := out.Value().(bool)
	return ok && matched
}
