package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

var validate = validator.New()

// decodeAndValidate parses the JSON body into dst and runs struct
// validation. Oversized bodies are cut off before decoding.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 32<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("INVALID_JSON", "request body is not valid JSON").WithCause(err)
	}
	if err := validate.Struct(dst); err != nil {
		details := map[string]interface{}{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return errors.NewValidationError("VALIDATION_FAILED", "request validation failed").
			WithDetails(details)
	}
	return nil
}

type loginStep1Request struct {
	Username   string `json:"username" validate:"required,min=3,max=64"`
	Password   string `json:"password" validate:"required"`
	CaseNumber string `json:"case_number" validate:"required"`
}

type loginStep2Request struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

type resendOTPRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	Password string `json:"password" validate:"required,min=12"`
	Role     string `json:"role" validate:"required,oneof=uploader verifier forensic court admin"`
}

type kycDecisionRequest struct {
	Approve bool `json:"approve"`
}

type createCaseRequest struct {
	Number      string `json:"number" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=256"`
	Description string `json:"description" validate:"max=4096"`
}

type grantAccessRequest struct {
	OperatorID string `json:"operator_id" validate:"required,uuid"`
	Level      string `json:"level" validate:"required,oneof=read write admin"`
}

type uploadEvidenceRequest struct {
	Filename    string   `json:"filename" validate:"required,max=256"`
	MimeType    string   `json:"mime_type" validate:"required,max=128"`
	Content     []byte   `json:"content" validate:"required"`
	Description string   `json:"description" validate:"max=4096"`
	Tags        []string `json:"tags" validate:"max=32,dive,max=64"`
	DeviceInfo  string   `json:"device_info" validate:"max=512"`
	Geolocation string   `json:"geolocation" validate:"max=256"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=4096"`
}

type assignForensicRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid"`
}

type submitAnalysisRequest struct {
	Findings  string `json:"findings" validate:"required,max=65536"`
	ReportRef string `json:"report_ref" validate:"max=512"`
}

type transferRequest struct {
	ToOperatorID string `json:"to_operator_id" validate:"required,uuid"`
}

type integrityCheckRequest struct {
	Content []byte `json:"content" validate:"required"`
}
