package permit

import "errors"

var (
	// ErrNotFound is wrapped by store implementations for missing records.
	ErrNotFound = errors.New("not found")

	// ErrRoleCycle is returned when a role create/update would make the
	// parent graph cyclic. Cycles are rejected at write time so reads can
	// assume a DAG.
	ErrRoleCycle = errors.New("role hierarchy cycle")

	// ErrRoleInUse is returned when deleting a role that still has active
	// child roles or active assignments.
	ErrRoleInUse = errors.New("role has active children or assignments")

	// ErrInvalid is wrapped for malformed management input.
	ErrInvalid = errors.New("invalid input")
)
