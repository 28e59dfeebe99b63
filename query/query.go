// Package query compiles CEL boolean expressions evaluated against dyno
// objects. The object's properties are bound to the variable record, so
// `record.symbol == "AAPL" && record.position > 0` is a valid expression.
package query

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/guyvdb/tradestore/dyno"
	"github.com/guyvdb/tradestore/fault"
)

// Variable is the name the object's properties are bound to.
const Variable = "record"

// Predicate is a compiled expression.
type Predicate struct {
	Expression string
	program    cel.Program
}

// Compile parses and type checks expression. The result must be a bool.
func Compile(expression string) (*Predicate, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("expression can't be empty: %w", fault.ErrInvalidArgument)
	}

	env, err := cel.NewEnv(
		cel.Variable(Variable, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression: %w: %v", fault.ErrInvalidArgument, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must yield a bool, got %s: %w", ast.OutputType(), fault.ErrInvalidArgument)
	}

	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL program: %w", err)
	}
	return &Predicate{Expression: expression, program: p}, nil
}

// Match evaluates the predicate against obj.
func (p *Predicate) Match(obj *dyno.Object) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		Variable: obj.Map(),
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating %q on %s: %w: %v", p.Expression, obj.Type, fault.ErrInvalidArgument, err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q yielded %v, not a bool: %w", p.Expression, out.Value(), fault.ErrInvalidArgument)
	}
	return v, nil
}
