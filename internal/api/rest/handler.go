package rest

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/infrastructure/telemetry"
	"github.com/custodia-platform/custodia-backend/internal/service/access"
	"github.com/custodia-platform/custodia-backend/internal/service/authn"
	"github.com/custodia-platform/custodia-backend/internal/service/casemgmt"
	"github.com/custodia-platform/custodia-backend/internal/service/ledger"
	"github.com/custodia-platform/custodia-backend/internal/service/workflow"
)

// Handler bundles the HTTP handlers over the service layer.
type Handler struct {
	auth     *authn.Service
	access   *access.Service
	workflow *workflow.Service
	cases    *casemgmt.Service
	ledger   *ledger.Service
	metrics  *telemetry.Metrics
}

// NewHandler creates the handler set.
func NewHandler(
	auth *authn.Service,
	accessSvc *access.Service,
	workflowSvc *workflow.Service,
	cases *casemgmt.Service,
	ledgerSvc *ledger.Service,
	metrics *telemetry.Metrics,
) *Handler {
	return &Handler{
		auth:     auth,
		access:   accessSvc,
		workflow: workflowSvc,
		cases:    cases,
		ledger:   ledgerSvc,
		metrics:  metrics,
	}
}

// pathUUID parses a {wildcard} path segment as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID",
			"path segment "+name+" must be a UUID")
	}
	return id, nil
}

// sessionActor builds the workflow actor from the request's claims.
func sessionActor(r *http.Request) (workflow.Actor, *authn.Claims, bool) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		return workflow.Actor{}, nil, false
	}
	return workflow.Actor{
		OperatorID: claims.OperatorID,
		CaseID:     claims.CaseID,
		Origin:     clientOrigin(r),
	}, claims, true
}
