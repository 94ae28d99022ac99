package permit

import (
	"context"
	"errors"
	"time"
)

// ============================================================================
// RESOURCE-INSTANCE GRANTS
// ============================================================================

// resolveGrant checks whether the user holds a live grant on the exact
// resource instance covering the requested permission kind. Ownership of
// the resource is an implicit full grant. Expired and inactive grants are
// filtered here and never reach a decision.
func (e *Engine) resolveGrant(ctx context.Context, rc *Context, roleIDs []string, now time.Time) (bool, error) {
	if e.st.Resources == nil || rc.ResourceType == "" || rc.ResourceID == "" {
		return false, nil
	}
	own, err := e.st.Resources.GrantsFor(ctx, rc.ResourceType, rc.ResourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if own == nil {
		return false, nil
	}
	if own.OwnerID != "" && own.OwnerID == rc.UserID {
		return true, nil
	}
	roles := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		roles[id] = true
	}
	for _, g := range own.Grants {
		if !g.LiveAt(now) {
			continue
		}
		// A grant targets either a user directly or every holder of a role.
		applies := (g.UserID != "" && g.UserID == rc.UserID) ||
			(g.RoleID != "" && roles[g.RoleID])
		if applies && g.HasKind(rc.Kind) {
			return true, nil
		}
	}
	return false, nil
}
