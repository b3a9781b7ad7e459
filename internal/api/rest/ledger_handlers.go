package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/audit"
)

// handleCustodyReport exports the court-ready trail for one item.
// GET /api/v1/evidence/{id}/report
func (h *Handler) handleCustodyReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}
	evidenceID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.ledger.Report(r.Context(), claims.OperatorID, claims.CaseID, evidenceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleQueryLedger returns ledger entries under the session's case
// scope.
// GET /api/v1/audit
func (h *Handler) handleQueryLedger(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action: audit.Action(q.Get("action")),
		Result: q.Get("result"),
	}
	if filter.Action != "" {
		if err := filter.Action.Validate(); err != nil {
			writeError(w, err)
			return
		}
	}
	if v := q.Get("evidence_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.EvidenceID = &id
		}
	}
	if v := q.Get("actor_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.ActorID = &id
		}
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Until = t
		}
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	filter.Ascending = q.Get("order") == "asc"

	entries, err := h.ledger.Query(r.Context(), claims.OperatorID, claims.CaseID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}

// handleVerifyChain runs chain verification over a sequence range.
// GET /api/v1/audit/chain
func (h *Handler) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "authorization required")
		return
	}

	q := r.URL.Query()
	from, err := strconv.ParseUint(q.Get("from"), 10, 64)
	if err != nil || from == 0 {
		from = 1
	}
	to, err := strconv.ParseUint(q.Get("to"), 10, 64)
	if err != nil || to == 0 {
		to = from + 9999
	}

	result, err := h.ledger.VerifyChain(r.Context(), claims.OperatorID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
