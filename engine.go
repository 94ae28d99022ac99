package permit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/permithq/permit/logger"
	"github.com/permithq/permit/utils"
)

// ============================================================================
// ENGINE
// ============================================================================

// Engine is the authorization decision engine. It combines role-based
// permissions, resource-instance grants, attribute policies and dynamic
// expression permissions behind a single Authorize entry point. All reads
// go through the configured stores; decisions are memoized in the cache
// and invalidated through epoch bumps on writes.
type Engine struct {
	st        Stores
	cache     Cache
	epochs    EpochSource
	evaluator ExpressionEvaluator
	logger    logger.Logger
	clock     func() time.Time

	decisionTTL    time.Duration
	aggregationTTL time.Duration
}

// DefaultDecisionTTL is how long a memoized decision stays valid.
const DefaultDecisionTTL = 15 * time.Minute

// DefaultAggregationTTL is how long a user's resolved permission set
// stays valid.
const DefaultAggregationTTL = 30 * time.Minute

// NewEngine builds an engine over the given store bundle. Roles,
// Permissions, Assignments and Users are required; the remaining stores
// are optional and their checks are skipped when absent.
func NewEngine(st Stores, opts ...EngineOption) (*Engine, error) {
	if st.Roles == nil || st.Permissions == nil || st.Assignments == nil {
		return nil, fmt.Errorf("%w: role, permission and assignment stores are required", ErrInvalid)
	}
	if st.Users == nil {
		return nil, fmt.Errorf("%w: user directory is required", ErrInvalid)
	}
	e := &Engine{
		st:             st,
		logger:         logger.Null{},
		clock:          time.Now,
		decisionTTL:    DefaultDecisionTTL,
		aggregationTTL: DefaultAggregationTTL,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.cache == nil {
		c, err := NewRistrettoCache(0, 0, 0)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	if e.epochs == nil {
		e.epochs = NewMemoryEpochSource()
	}
	return e, nil
}

// Close releases the decision cache.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Authorize answers a single permission check. The outcome is always a
// definite allow or deny with a reason; internal failures deny rather
// than propagate, so callers can gate on Result.Allowed alone.
func (e *Engine) Authorize(ctx context.Context, rc *Context) *Result {
	start := e.clock()
	res := e.authorize(ctx, rc)
	res.Duration = e.clock().Sub(start)
	return res
}

// Can is a convenience wrapper returning only the boolean outcome.
func (e *Engine) Can(ctx context.Context, userID, resourceType, resourceID string, kind PermissionKind) bool {
	return e.Authorize(ctx, &Context{
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Kind:         kind,
	}).Allowed
}

// BatchAuthorize evaluates each request in order and returns the results
// in the same order. Requests after an error still run; every slot in
// the returned slice is populated.
func (e *Engine) BatchAuthorize(ctx context.Context, rcs []*Context) []*Result {
	out := make([]*Result, len(rcs))
	for i, rc := range rcs {
		out[i] = e.Authorize(ctx, rc)
	}
	return out
}

func (e *Engine) authorize(ctx context.Context, rc *Context) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("authorize panicked", "panic", fmt.Sprint(r), "user", rc.UserID)
			res = &Result{Decision: DecisionDeny, Reason: "authorization error occurred"}
		}
	}()
	if rc == nil || rc.UserID == "" {
		return &Result{Decision: DecisionDeny, Reason: "invalid authorization context"}
	}
	// Default the timestamp on a copy; the caller's Context stays untouched.
	if rc.Timestamp.IsZero() {
		cp := *rc
		cp.Timestamp = e.clock()
		rc = &cp
	}

	globalEpoch, err := e.epochs.Global(ctx)
	if err != nil {
		return e.failClosed(rc, err)
	}
	userEpoch, err := e.epochs.User(ctx, rc.UserID)
	if err != nil {
		return e.failClosed(rc, err)
	}

	key := decisionKey(globalEpoch, userEpoch, rc)
	if v, ok := e.cache.Get(key); ok {
		if cached, ok := v.(*Result); ok {
			cp := *cached
			return &cp
		}
	}

	res, err = e.decide(ctx, rc, globalEpoch, userEpoch)
	if err != nil {
		return e.failClosed(rc, err)
	}
	e.cache.Set(key, res, e.decisionTTL)
	return res
}

// decide runs the fixed evaluation order: user liveness, aggregated
// permissions, resource-instance grants, attribute policies, dynamic
// expressions, default deny.
func (e *Engine) decide(ctx context.Context, rc *Context, globalEpoch, userEpoch uint64) (*Result, error) {
	status, err := e.st.Users.Status(ctx, rc.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if status != UserActive {
		return &Result{Decision: DecisionDeny, Reason: "user not found or inactive"}, nil
	}

	agg, err := e.aggregationFor(ctx, rc, globalEpoch, userEpoch)
	if err != nil {
		return nil, err
	}

	res := &Result{}

	// Aggregated direct, role and group permissions.
	for _, p := range agg.Permissions {
		if e.permissionAllows(p, rc) {
			res.Allowed = true
			res.Decision = DecisionAllow
			res.Reason = "direct permission granted"
			return res, nil
		}
	}

	// Resource-instance grants and ownership.
	granted, err := e.resolveGrant(ctx, rc, agg.RoleIDs, rc.Timestamp)
	if err != nil {
		return nil, err
	}
	if granted {
		res.Allowed = true
		res.Decision = DecisionAllow
		res.Reason = "resource-level permission granted"
		return res, nil
	}

	// Attribute policies. An allow halts policy evaluation immediately.
	// A deny does not halt the loop and does not conclude the decision;
	// it is only remembered as the reason for the eventual default deny.
	var denyReason string
	if e.st.Policies != nil {
		policies, err := e.st.Policies.ListApplicable(ctx, rc.ResourceType, rc.ResourceID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		for _, pd := range EvaluatePolicies(policies, rc, agg.RoleIDs) {
			res.MatchedPolicies = append(res.MatchedPolicies, policyLabel(pd.Policy))
			switch pd.Decision {
			case DecisionAllow:
				res.Allowed = true
				res.Decision = DecisionAllow
				res.Reason = pd.Reason
				return res, nil
			case DecisionDeny:
				denyReason = pd.Reason
			}
		}
	}

	// Dynamic expression permissions. An evaluation failure is logged
	// and treated as no match.
	if e.st.Dynamic != nil && e.evaluator != nil {
		dyns, err := e.st.Dynamic.ListMatching(ctx, rc.Kind, rc.ResourceType)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		for _, d := range dyns {
			if !d.Matches(rc.Kind, rc.ResourceType) {
				continue
			}
			ok, evalErr := e.evaluator.Evaluate(d.Expression, rc)
			if evalErr != nil {
				e.logger.Error("dynamic permission evaluation failed", "permission", d.Name, "error", evalErr)
				continue
			}
			if ok {
				res.Allowed = true
				res.Decision = DecisionAllow
				res.Reason = fmt.Sprintf("dynamic permission %q granted", d.Name)
				return res, nil
			}
		}
	}

	res.Decision = DecisionDeny
	if denyReason != "" {
		res.Reason = denyReason
	} else {
		res.Reason = "no applicable permissions found"
	}
	return res, nil
}

// permissionAllows reports whether a single aggregated permission covers
// the request. Required conditions must hold against the request
// attributes; failures of non-required conditions are ignored.
func (e *Engine) permissionAllows(p *Permission, rc *Context) bool {
	if p.Kind != rc.Kind {
		return false
	}
	if p.ResourceType != "" && p.ResourceType != ScopeAll && p.ResourceType != rc.ResourceType {
		return false
	}
	if p.InstanceScoped() {
		if p.ResourceID != rc.ResourceID {
			return false
		}
	} else if p.Scope != "" && !utils.MatchScope(rc.ResourceID, p.Scope) {
		return false
	}
	return requiredConditionsHold(p.Conditions, rc.Attributes)
}

func (e *Engine) failClosed(rc *Context, err error) *Result {
	e.logger.Error("authorization failed closed", "user", rc.UserID, "resource_type", rc.ResourceType, "resource", rc.ResourceID, "error", err)
	return &Result{Decision: DecisionDeny, Reason: "authorization error occurred"}
}

// EffectivePermissions exposes the resolved permission set for a user,
// uncached, including role and group expansion. Useful for UIs that
// render what a user may do. attrs gates condition-carrying role
// assignments the same way request attributes do during Authorize; pass
// nil to list only unconditional entitlements.
func (e *Engine) EffectivePermissions(ctx context.Context, userID string, attrs map[string]any) ([]*Permission, []string, error) {
	agg, err := e.effectivePermissions(ctx, userID, e.clock(), attrs)
	if err != nil {
		return nil, nil, err
	}
	return agg.Permissions, agg.RoleIDs, nil
}
