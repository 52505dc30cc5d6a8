package handler

import (
	"strings"

	"accessops/internal/request"
	dErrors "accessops/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /requests.
type CreateRequest struct {
	Resource      string `json:"resource"`
	Action        string `json:"action"`
	Justification string `json:"justification,omitempty"`
}

// Normalize trims surrounding whitespace from all fields.
func (r *CreateRequest) Normalize() {
	r.Resource = strings.TrimSpace(r.Resource)
	r.Action = strings.TrimSpace(r.Action)
	r.Justification = strings.TrimSpace(r.Justification)
}

// Validate checks required fields and size limits. The domain model repeats
// these checks; failing here keeps garbage out of the service logs.
func (r *CreateRequest) Validate() error {
	if r.Resource == "" {
		return dErrors.New(dErrors.CodeValidation, "resource is required")
	}
	if len(r.Resource) > request.MaxResourceLen {
		return dErrors.New(dErrors.CodeValidation, "resource is too long")
	}
	if r.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "action is required")
	}
	if len(r.Action) > request.MaxActionLen {
		return dErrors.New(dErrors.CodeValidation, "action is too long")
	}
	return nil
}
