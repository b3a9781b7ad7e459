package rest

import (
	"net/http"
	"strconv"

	"github.com/custodia-platform/custodia-backend/internal/domain/values"
	"github.com/google/uuid"
)

// handleCreateCase registers a new case.
// POST /api/v1/cases
func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	var req createCaseRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.cases.CreateCase(r.Context(), claims.OperatorID, req.Number, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleGetCase returns the caller's session case.
// GET /api/v1/cases/current
func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	c, err := h.cases.GetCase(r.Context(), claims.OperatorID, claims.CaseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleListCases returns the case roster. Admin only.
// GET /api/v1/cases
func (h *Handler) handleListCases(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	cases, err := h.cases.ListCases(r.Context(), claims.OperatorID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": cases})
}

// handleCaseLifecycle applies close/reopen/archive to a case.
// POST /api/v1/cases/{id}/{action}
func (h *Handler) handleCaseLifecycle(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r.Context())
		if !ok {
			writeUnauthorized(w, "authorization required")
			return
		}
		caseID, err := pathUUID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		var c interface{}
		switch action {
		case "close":
			c, err = h.cases.CloseCase(r.Context(), claims.OperatorID, caseID)
		case "reopen":
			c, err = h.cases.ReopenCase(r.Context(), claims.OperatorID, caseID)
		case "archive":
			c, err = h.cases.ArchiveCase(r.Context(), claims.OperatorID, caseID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// handleGrantAccess issues a case-access grant to an operator.
// POST /api/v1/cases/{id}/grants
func (h *Handler) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}
	caseID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req grantAccessRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	operatorID, err := uuid.Parse(req.OperatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	level, err := values.NewAccessLevel(req.Level)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.access.GrantCaseAccess(r.Context(), claims.OperatorID, operatorID, caseID, level); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
