// Package sync is the offline-first synchronization core: last-write-wins
// conflict resolution between independently edited plan copies, the
// orchestrator that pushes and pulls plans through the remote repository,
// selective and bulk transfer operations, and the retry/debounce utilities
// the callers build on. The package owns no storage — callers pass local
// plans in and commit resolved plans back out.
package sync

import "github.com/moneto/moneto-go/internal/plan"

// Outcome is the verdict of a last-write-wins comparison between the
// local and remote copy of one plan.
type Outcome int

const (
	// OutcomeNoOp means the copies carry the same version; nothing to do.
	OutcomeNoOp Outcome = iota
	// OutcomeLocalWins means the local copy is newer and must be uploaded.
	OutcomeLocalWins
	// OutcomeRemoteWins means the remote copy is newer and must replace
	// the local one.
	OutcomeRemoteWins
	// OutcomeRemoteAbsent means the plan has no remote copy yet.
	OutcomeRemoteAbsent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoOp:
		return "no-op"
	case OutcomeLocalWins:
		return "local-wins"
	case OutcomeRemoteWins:
		return "remote-wins"
	case OutcomeRemoteAbsent:
		return "remote-absent"
	default:
		return "unknown"
	}
}

// Resolve compares the UpdatedAt markers of a local plan and its remote
// counterpart and decides which copy wins. A nil remote means the plan
// only exists locally. Malformed timestamps parse to the zero time, so a
// copy with a broken marker always loses to one with a valid marker; two
// broken markers compare equal and resolve to a no-op.
func Resolve(local plan.Plan, remote *plan.Plan) Outcome {
	if remote == nil {
		return OutcomeRemoteAbsent
	}

	localAt := plan.ParseTime(local.UpdatedAt)
	remoteAt := plan.ParseTime(remote.UpdatedAt)

	switch {
	case remoteAt.After(localAt):
		return OutcomeRemoteWins
	case localAt.After(remoteAt):
		return OutcomeLocalWins
	default:
		return OutcomeNoOp
	}
}
