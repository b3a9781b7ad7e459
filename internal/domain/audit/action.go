package audit

import "fmt"

// Action is the fixed audit vocabulary. It is extended by adding a
// constant here, never by free text.
type Action string

const (
	ActionUpload         Action = "upload"
	ActionView           Action = "view"
	ActionVerify         Action = "verify"
	ActionReject         Action = "reject"
	ActionAssign         Action = "assign"
	ActionSubmitAnalysis Action = "submit_analysis"
	ActionApprove        Action = "approve"
	ActionCourtSubmit    Action = "court_submit"
	ActionClose          Action = "close"
	ActionTransfer       Action = "transfer"

	ActionLoginStep1Success Action = "login_step1_success"
	ActionLoginFailed       Action = "login_failed"
	ActionOtpFailed         Action = "otp_failed"
	ActionLoginSuccess      Action = "login_success"
	ActionLogout            Action = "logout"

	ActionUnauthorizedCaseAccess Action = "unauthorized_case_access"
	ActionUnauthorizedRoleAccess Action = "unauthorized_role_access"
)

var knownActions = map[Action]struct{}{
	ActionUpload: {}, ActionView: {}, ActionVerify: {}, ActionReject: {},
	ActionAssign: {}, ActionSubmitAnalysis: {}, ActionApprove: {},
	ActionCourtSubmit: {}, ActionClose: {}, ActionTransfer: {},
	ActionLoginStep1Success: {}, ActionLoginFailed: {}, ActionOtpFailed: {},
	ActionLoginSuccess: {}, ActionLogout: {},
	ActionUnauthorizedCaseAccess: {}, ActionUnauthorizedRoleAccess: {},
}

// Validate checks the action against the fixed vocabulary
func (a Action) Validate() error {
	if _, ok := knownActions[a]; !ok {
		return fmt.Errorf("unknown audit action: %s", a)
	}
	return nil
}

func (a Action) String() string {
	return string(a)
}

// IsSecuritySignal reports whether the action is part of the
// tamper/intrusion signal stream.
func (a Action) IsSecuritySignal() bool {
	switch a {
	case ActionLoginFailed, ActionOtpFailed,
		ActionUnauthorizedCaseAccess, ActionUnauthorizedRoleAccess:
		return true
	default:
		return false
	}
}
