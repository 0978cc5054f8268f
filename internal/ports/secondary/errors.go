package secondary

import "errors"

// ErrDuplicateAssignment is returned when a subject is already assigned to the battery.
var ErrDuplicateAssignment = errors.New("subject is already assigned to this battery")

// ErrWorktreeExists is returned by AddWorktree when the target worktree is already present,
// typically because a concurrent deploy of the same commit won the race.
var ErrWorktreeExists = errors.New("worktree already exists")
