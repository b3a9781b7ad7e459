package rest

import (
	"net/http"
	"time"

	"github.com/custodia-platform/custodia-backend/internal/service/authn"
)

type loginStep1Response struct {
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type loginStep2Response struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CaseID    string    `json:"case_id"`
	Role      string    `json:"role"`
}

// handleLoginStep1 starts the two-step login.
// POST /api/v1/auth/login
func (h *Handler) handleLoginStep1(w http.ResponseWriter, r *http.Request) {
	var req loginStep1Request
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.LoginStep1(r.Context(), authn.Step1Request{
		Username:   req.Username,
		Password:   req.Password,
		CaseNumber: req.CaseNumber,
		Origin:     clientOrigin(r),
	})
	if err != nil {
		h.metrics.LoginAttempts.WithLabelValues("step1", "failure").Inc()
		writeError(w, err)
		return
	}

	h.metrics.LoginAttempts.WithLabelValues("step1", "success").Inc()
	writeJSON(w, http.StatusOK, loginStep1Response{
		Status:    "code_sent",
		ExpiresAt: result.ExpiresAt,
	})
}

// handleLoginStep2 completes the login with the one-time code.
// POST /api/v1/auth/verify
func (h *Handler) handleLoginStep2(w http.ResponseWriter, r *http.Request) {
	var req loginStep2Request
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.LoginStep2(r.Context(), authn.Step2Request{
		Username: req.Username,
		Code:     req.Code,
		Origin:   clientOrigin(r),
	})
	if err != nil {
		h.metrics.LoginAttempts.WithLabelValues("step2", "failure").Inc()
		writeError(w, err)
		return
	}

	h.metrics.LoginAttempts.WithLabelValues("step2", "success").Inc()
	writeJSON(w, http.StatusOK, loginStep2Response{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		CaseID:    result.CaseID.String(),
		Role:      result.Role,
	})
}

// handleResendOTP issues a fresh code for a login in progress.
// POST /api/v1/auth/resend
func (h *Handler) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.ResendOTP(r.Context(), req.Username, clientOrigin(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginStep1Response{
		Status:    "code_sent",
		ExpiresAt: result.ExpiresAt,
	})
}

// handleLogout revokes the current session.
// POST /api/v1/auth/logout
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	if err := h.auth.Logout(r.Context(), claims); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleRegister enrolls a new operator, left pending until KYC.
// POST /api/v1/auth/register
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	op, err := h.auth.Register(r.Context(), authn.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     op.ID,
		"status": op.Status.String(),
	})
}

// handleKYCDecision records an admin's identity-verification decision.
// POST /api/v1/operators/{id}/kyc
func (h *Handler) handleKYCDecision(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	operatorID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req kycDecisionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	op, err := h.auth.VerifyKYC(r.Context(), claims.OperatorID, operatorID, req.Approve)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         op.ID,
		"status":     op.Status.String(),
		"kyc_status": string(op.KYC.Status),
	})
}
