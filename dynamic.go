package permit

// ============================================================================
// DYNAMIC PERMISSIONS
// ============================================================================

// ExpressionEvaluator evaluates the opaque boolean expressions carried by
// dynamic permissions. The engine treats expressions as black boxes; the
// celeval subpackage supplies a CEL-backed implementation, and callers may
// plug in anything else. Evaluation errors always fail closed to false.
type ExpressionEvaluator interface {
	Evaluate(expression string, rc *Context) (bool, error)
}

// ExpressionValidator is optionally implemented by evaluators that can
// check an expression without running it. Write paths use it to reject
// broken expressions before they are stored.
type ExpressionValidator interface {
	Validate(expression string) error
}

// ExpressionEvaluatorFunc adapts a function to the interface.
type ExpressionEvaluatorFunc func(expression string, rc *Context) (bool, error)

func (f ExpressionEvaluatorFunc) Evaluate(expression string, rc *Context) (bool, error) {
	return f(expression, rc)
}

// Matches reports whether the dynamic permission is bound to the request's
// kind and resource type. Only matching, active dynamic permissions reach
// the evaluator.
func (d *DynamicPermission) Matches(kind PermissionKind, resourceType string) bool {
	return d.Active && d.Kind == kind && d.ResourceType == resourceType
}
