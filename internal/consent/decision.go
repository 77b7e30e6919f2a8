// Package consent owns the tri-state tracking consent decision: how it is
// persisted per visitor, and the state machine that decides when the prompt
// is shown and whether downstream tracking is granted.
package consent

// Decision is the visitor's tracking consent state.
type Decision string

const (
	// Unset means no explicit choice has been recorded. It is the only
	// state in which the prompt is shown unprompted.
	Unset Decision = "unset"
	// Accepted grants analytics/advertising tracking.
	Accepted Decision = "accepted"
	// Rejected denies analytics/advertising tracking.
	Rejected Decision = "rejected"
)

// ParseDecision maps a stored value to a Decision. Anything missing,
// corrupt, or unrecognized is Unset; absence of a record is not an error.
func ParseDecision(s string) Decision {
	switch Decision(s) {
	case Accepted:
		return Accepted
	case Rejected:
		return Rejected
	default:
		return Unset
	}
}

// Granted reports whether tracking may run under this decision.
func (d Decision) Granted() bool { return d == Accepted }
