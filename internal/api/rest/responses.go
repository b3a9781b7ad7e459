package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	stderrors "errors"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

// errorResponse is the single error envelope for the whole API.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}

// writeError maps an application error to its HTTP shape. Unknown
// errors collapse to a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: errorBody{Code: "INTERNAL_ERROR", Message: "an internal error occurred"},
		})
		return
	}

	if retry, ok := appErr.Details["retry_after_seconds"].(int); ok {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}

	writeJSON(w, appErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error: errorBody{Code: "UNAUTHORIZED", Message: message},
	})
}
