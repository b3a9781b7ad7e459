package operator

// Role is the fixed system-wide role enumeration. It determines the
// default capability set and is immutable after creation.
type Role int

const (
	// RoleUploader covers citizens/investigators who submit evidence.
	RoleUploader Role = iota
	// RoleVerifier covers police officers who triage submissions.
	RoleVerifier
	// RoleForensic covers forensic experts analysing assigned items.
	RoleForensic
	// RoleCourt covers court officials who see approved evidence.
	RoleCourt
	// RoleAdmin holds universal case access.
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUploader:
		return "uploader"
	case RoleVerifier:
		return "verifier"
	case RoleForensic:
		return "forensic"
	case RoleCourt:
		return "court"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole converts a stored role string to a Role
func ParseRole(s string) (Role, bool) {
	switch s {
	case "uploader":
		return RoleUploader, true
	case "verifier":
		return RoleVerifier, true
	case "forensic":
		return RoleForensic, true
	case "court":
		return RoleCourt, true
	case "admin":
		return RoleAdmin, true
	default:
		return RoleUploader, false
	}
}

// IsValid reports whether the role is one of the defined values
func (r Role) IsValid() bool {
	return r >= RoleUploader && r <= RoleAdmin
}

// Status is the operator lifecycle status. Blocked is terminal for
// login purposes; the record is never deleted.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string to a Status
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "active":
		return StatusActive, true
	case "blocked":
		return StatusBlocked, true
	default:
		return StatusPending, false
	}
}

// KYCStatus is the verification state of the KYC sub-record.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)
