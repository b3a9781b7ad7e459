package rest

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/evidence"
	"github.com/custodia-platform/custodia-backend/internal/service/workflow"
)

// handleUploadEvidence ingests an artifact into the session case.
// POST /api/v1/evidence
func (h *Handler) handleUploadEvidence(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := sessionActor(r)
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	var req uploadEvidenceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.workflow.Upload(r.Context(), actor, workflow.UploadRequest{
		Content:     req.Content,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		Description: req.Description,
		Tags:        req.Tags,
		DeviceInfo:  req.DeviceInfo,
		Geolocation: req.Geolocation,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleGetEvidence returns one item and records the view.
// GET /api/v1/evidence/{id}
func (h *Handler) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.View(r.Context(), actor, id)
	})
}

// handleListEvidence lists the session case's evidence visible to the
// caller's role.
// GET /api/v1/evidence
func (h *Handler) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := sessionActor(r)
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.workflow.ListByCase(r.Context(), actor, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// handleVerifyEvidence applies the verifier's accept decision.
// POST /api/v1/evidence/{id}/verify
func (h *Handler) handleVerifyEvidence(w http.ResponseWriter, r *http.Request) {
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.Verify(r.Context(), actor, id)
	})
}

// handleRejectVerification applies the verifier's reject decision.
// POST /api/v1/evidence/{id}/reject-verification
func (h *Handler) handleRejectVerification(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.RejectVerification(r.Context(), actor, id, req.Reason)
	})
}

// handleAssignForensic opens the forensic analysis sub-state.
// POST /api/v1/evidence/{id}/assign
func (h *Handler) handleAssignForensic(w http.ResponseWriter, r *http.Request) {
	var req assignForensicRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	assigneeID, err := uuid.Parse(req.AssigneeID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.AssignForensic(r.Context(), actor, id, assigneeID)
	})
}

// handleSubmitAnalysis records the assignee's findings.
// POST /api/v1/evidence/{id}/analysis
func (h *Handler) handleSubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req submitAnalysisRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.SubmitAnalysis(r.Context(), actor, id, req.Findings, req.ReportRef)
	})
}

// handleApproveEvidence applies the admin's accept decision.
// POST /api/v1/evidence/{id}/approve
func (h *Handler) handleApproveEvidence(w http.ResponseWriter, r *http.Request) {
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.Approve(r.Context(), actor, id)
	})
}

// handleRejectApproval applies the admin's reject decision.
// POST /api/v1/evidence/{id}/reject-approval
func (h *Handler) handleRejectApproval(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.RejectApproval(r.Context(), actor, id, req.Reason)
	})
}

// handleCourtSubmit moves an approved item to court-submitted.
// POST /api/v1/evidence/{id}/court-submit
func (h *Handler) handleCourtSubmit(w http.ResponseWriter, r *http.Request) {
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.SubmitToCourt(r.Context(), actor, id)
	})
}

// handleCloseEvidence applies the administrative terminal close.
// POST /api/v1/evidence/{id}/close
func (h *Handler) handleCloseEvidence(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	_ = decodeAndValidate(r, &req) // reason is optional on close
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.Close(r.Context(), actor, id, req.Reason)
	})
}

// handleTransferEvidence hands custody to another operator.
// POST /api/v1/evidence/{id}/transfer
func (h *Handler) handleTransferEvidence(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	toID, err := uuid.Parse(req.ToOperatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.Transfer(r.Context(), actor, id, toID)
	})
}

// handleIntegrityCheck recomputes the digest against the stored hash.
// POST /api/v1/evidence/{id}/integrity
func (h *Handler) handleIntegrityCheck(w http.ResponseWriter, r *http.Request) {
	var req integrityCheckRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.withEvidence(w, r, func(actor workflow.Actor, id uuid.UUID) (*evidence.Evidence, error) {
		return h.workflow.CheckIntegrity(r.Context(), actor, id, req.Content)
	})
}

func (h *Handler) withEvidence(w http.ResponseWriter, r *http.Request, fn func(workflow.Actor, uuid.UUID) (*evidence.Evidence, error)) {
	actor, _, ok := sessionActor(r)
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	item, err := fn(actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
