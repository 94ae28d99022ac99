// Package celeval backs the engine's dynamic permission evaluator with
// Common Expression Language programs. Expressions see two variables:
// request (user id, resource type/id, permission kind, timestamp) and
// attrs (the caller-supplied context attributes). Role gating belongs to
// policies and is not exposed here.
package celeval

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/permithq/permit"
)

// Evaluator compiles and runs CEL expressions against a request context.
// Compiled programs are cached per expression string because dynamic
// permissions are few and evaluated often.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

// New builds an evaluator with the engine's variable declarations.
func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("attrs", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Evaluate implements permit.ExpressionEvaluator. Any compile or runtime
// failure returns false with the error; the engine treats that as no
// match.
func (e *Evaluator) Evaluate(expression string, rc *permit.Context) (bool, error) {
	prog, err := e.program(expression)
	if err != nil {
		return false, err
	}
	attrs := rc.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	out, _, err := prog.Eval(map[string]any{
		"request": map[string]any{
			"user_id":       rc.UserID,
			"resource_type": rc.ResourceType,
			"resource_id":   rc.ResourceID,
			"kind":          string(rc.Kind),
			"timestamp":     rc.Timestamp,
		},
		"attrs": attrs,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression yielded %T, want bool", out.Value())
	}
	return b, nil
}

// Validate compiles an expression without running it.
func (e *Evaluator) Validate(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	if v, ok := e.programs.Load(expression); ok {
		return v.(cel.Program), nil
	}
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}
	prog, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}
	e.programs.Store(expression, prog)
	return prog, nil
}
