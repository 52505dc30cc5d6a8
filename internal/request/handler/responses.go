package handler

import (
	"time"

	"accessops/internal/request"
)

// AccessRequestResponse is the HTTP representation of an access request.
type AccessRequestResponse struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"requester_id"`
	Resource      string     `json:"resource"`
	Action        string     `json:"action"`
	Justification string     `json:"justification,omitempty"`
	Status        string     `json:"status"`
	DecidedBy     *string    `json:"decided_by,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListResponse wraps a collection of requests.
type ListResponse struct {
	Requests []AccessRequestResponse `json:"requests"`
}

func toAccessRequestResponse(req request.AccessRequest) AccessRequestResponse {
	resp := AccessRequestResponse{
		ID:            req.ID.String(),
		RequesterID:   req.RequesterID.String(),
		Resource:      req.Resource,
		Action:        req.Action,
		Justification: req.Justification,
		Status:        string(req.Status),
		DecidedAt:     req.DecidedAt,
		CreatedAt:     req.CreatedAt,
	}
	if req.DecidedBy != nil {
		decidedBy := req.DecidedBy.String()
		resp.DecidedBy = &decidedBy
	}
	return resp
}

func toListResponse(reqs []request.AccessRequest) ListResponse {
	out := ListResponse{Requests: make([]AccessRequestResponse, 0, len(reqs))}
	for _, req := range reqs {
		out.Requests = append(out.Requests, toAccessRequestResponse(req))
	}
	return out
}
