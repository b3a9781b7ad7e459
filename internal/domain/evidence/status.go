package evidence

// Status is the evidence item's position in the fixed workflow.
// Rejected, closed and court_submitted are terminal.
type Status int

const (
	StatusUploaded Status = iota
	StatusPendingVerification
	StatusVerified
	StatusPendingApproval
	StatusApproved
	StatusCourtSubmitted
	StatusRejected
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUploaded:
		return "uploaded"
	case StatusPendingVerification:
		return "pending_verification"
	case StatusVerified:
		return "verified"
	case StatusPendingApproval:
		return "pending_approval"
	case StatusApproved:
		return "approved"
	case StatusCourtSubmitted:
		return "court_submitted"
	case StatusRejected:
		return "rejected"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string to a Status
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "uploaded":
		return StatusUploaded, true
	case "pending_verification":
		return StatusPendingVerification, true
	case "verified":
		return StatusVerified, true
	case "pending_approval":
		return StatusPendingApproval, true
	case "approved":
		return StatusApproved, true
	case "court_submitted":
		return StatusCourtSubmitted, true
	case "rejected":
		return StatusRejected, true
	case "closed":
		return StatusClosed, true
	default:
		return StatusUploaded, false
	}
}

// IsTerminal reports whether no further transition is defined.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusClosed || s == StatusCourtSubmitted
}

// AwaitingVerification reports whether the verify transitions apply.
func (s Status) AwaitingVerification() bool {
	return s == StatusUploaded || s == StatusPendingVerification
}

// ForensicStatus is the analysis sub-state, independent of the main
// workflow position.
type ForensicStatus string

const (
	ForensicNone       ForensicStatus = ""
	ForensicInProgress ForensicStatus = "in_progress"
	ForensicCompleted  ForensicStatus = "completed"
)
