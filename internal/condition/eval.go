package condition

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gridloom/gridloom/internal/grid"
	"github.com/gridloom/gridloom/internal/resolve"
)

// EvalError reports an evaluation failure (unbound identifier, operator
// applied to incompatible types). Callers fail open on it.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string {
	return "condition eval error: " + e.Message
}

// Bindings builds the evaluation environment for a row: every column id is
// bound to a typed value. Numbers stay numbers; null, undefined, and the
// empty string become nil; everything else binds as its string form.
func Bindings(row grid.Row, columns []grid.Column) map[string]any {
	env := make(map[string]any, len(columns))
	for _, col := range columns {
		v, ok := row.Get(col.ID)
		if !ok || grid.IsEmpty(v) {
			env[col.ID] = nil
			continue
		}
		if n, isNum := v.(grid.Number); isNum {
			env[col.ID] = float64(n)
			continue
		}
		env[col.ID] = grid.Stringify(v)
	}
	return env
}

// Eval parses and evaluates an expression against the environment.
// Returns the raw result (bool, float64, string, or nil).
func Eval(input string, env map[string]any) (any, error) {
	ast, err := parse(input)
	if err != nil {
		return nil, err
	}
	return evalExpr(ast, env)
}

// ShouldRun is the enrichment gate. A blank condition always permits the
// row. Otherwise the condition text is resolved against the row and then
// evaluated; only a result of exactly boolean false skips the row. Every
// failure mode - parse error, unbound identifier, non-boolean result - is
// logged and permits the row (fail-open, so a malformed condition never
// silently starves enrichment).
func ShouldRun(conditionText string, row grid.Row, columns []grid.Column, logger *slog.Logger) bool {
	if strings.TrimSpace(conditionText) == "" {
		return true
	}

	resolved := resolve.Resolve(conditionText, row, columns)
	result, err := Eval(resolved, Bindings(row, columns))
	if err != nil {
		logger.Warn("condition failed to evaluate, failing open",
			"condition", conditionText,
			"row", row.ID(),
			"error", err)
		return true
	}

	b, ok := result.(bool)
	if !ok {
		logger.Warn("condition did not produce a boolean, failing open",
			"condition", conditionText,
			"row", row.ID(),
			"result", fmt.Sprintf("%v", result))
		return true
	}
	return b
}

func evalExpr(e expr, env map[string]any) (any, error) {
	switch node := e.(type) {
	case literalExpr:
		return node.value, nil
	case identExpr:
		v, ok := env[node.name]
		if !ok {
			return nil, &EvalError{Message: fmt.Sprintf("unbound identifier %q", node.name)}
		}
		return v, nil
	case unaryExpr:
		operand, err := evalExpr(node.operand, env)
		if err != nil {
			return nil, err
		}
		b, ok := operand.(bool)
		if !ok {
			return nil, &EvalError{Message: "'!' requires a boolean operand"}
		}
		return !b, nil
	case binaryExpr:
		return evalBinary(node, env)
	default:
		return nil, &EvalError{Message: fmt.Sprintf("unknown expression node %T", e)}
	}
}

func evalBinary(node binaryExpr, env map[string]any) (any, error) {
	left, err := evalExpr(node.left, env)
	if err != nil {
		return nil, err
	}

	// && and || short-circuit and demand booleans on both sides.
	if node.op == tokenAnd || node.op == tokenOr {
		lb, ok := left.(bool)
		if !ok {
			return nil, &EvalError{Message: "'&&'/'||' require boolean operands"}
		}
		if node.op == tokenAnd && !lb {
			return false, nil
		}
		if node.op == tokenOr && lb {
			return true, nil
		}
		right, err := evalExpr(node.right, env)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, &EvalError{Message: "'&&'/'||' require boolean operands"}
		}
		return rb, nil
	}

	right, err := evalExpr(node.right, env)
	if err != nil {
		return nil, err
	}

	switch node.op {
	case tokenEq:
		return looseEquals(left, right), nil
	case tokenNeq:
		return !looseEquals(left, right), nil
	case tokenLt, tokenLte, tokenGt, tokenGte:
		return compareOrdered(node.op, left, right)
	default:
		return nil, &EvalError{Message: "unsupported binary operator"}
	}
}

// looseEquals compares across types the way condition authors expect:
// numbers compare numerically even when one side arrived as a numeric
// string, nil equals only nil, and everything else falls back to string
// equality.
func looseEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, aok := toNumber(a); aok {
		if bn, bok := toNumber(b); bok {
			return an == bn
		}
	}
	return toDisplayString(a) == toDisplayString(b)
}

func compareOrdered(op tokenKind, a, b any) (any, error) {
	if a == nil || b == nil {
		return nil, &EvalError{Message: "cannot order-compare null"}
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		switch op {
		case tokenLt:
			return an < bn, nil
		case tokenLte:
			return an <= bn, nil
		case tokenGt:
			return an > bn, nil
		case tokenGte:
			return an >= bn, nil
		}
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		switch op {
		case tokenLt:
			return as < bs, nil
		case tokenLte:
			return as <= bs, nil
		case tokenGt:
			return as > bs, nil
		case tokenGte:
			return as >= bs, nil
		}
	}
	return nil, &EvalError{Message: "order comparison requires two numbers or two strings"}
}

func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case bool:
		return 0, false
	default:
		return 0, false
	}
}

func toDisplayString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
