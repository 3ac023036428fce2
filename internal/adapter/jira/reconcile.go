package jira

// Default workflow transition ids for the two reconciliation moves.
// Jira's default workflow uses "2" for Close Issue and "3" for Reopen
// Issue; operators with customized workflows can override both per hook.
const (
	defaultResolveTransitionID = "2"
	defaultReopenTransitionID  = "3"
)

// Comments attached alongside the workflow transitions.
const (
	resolveComment = "This CR has been marked as resolved in Crashlytics"
	reopenComment  = "This CR has been reopened in Crashlytics"
)

// decisionKind enumerates the reconciliation outcomes.
type decisionKind int

const (
	decideNoOp decisionKind = iota
	decideResolve
	decideReopen
)

// decision is the reconciler's verdict: which transition to apply, if
// any, and the comment to attach.
type decision struct {
	kind         decisionKind
	transitionID string
	comment      string
}

// decide computes the reconciliation decision from the two resolution
// states. It is pure: the only inputs are whether the crash is resolved
// locally and whether the remote issue carries a resolution. A
// transition fires only when the two disagree, which makes repeated
// reconciliation of the same state a no-op.
func (a *Adapter) decide(locallyResolved, remotelyResolved bool) decision {
	switch {
	case locallyResolved && !remotelyResolved:
		return decision{
			kind:         decideResolve,
			transitionID: a.resolveTransitionID,
			comment:      resolveComment,
		}
	case !locallyResolved && remotelyResolved:
		return decision{
			kind:         decideReopen,
			transitionID: a.reopenTransitionID,
			comment:      reopenComment,
		}
	default:
		return decision{kind: decideNoOp}
	}
}
