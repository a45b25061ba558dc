package api

import (
	"github.com/libradesk/libradesk-server/internal/store"
)

// ListResponse is a generic paginated list response.
type ListResponse[T any] struct {
	Items   []T  `json:"items" doc:"List of items"`
	Total   int  `json:"total" doc:"Total count across all pages"`
	Limit   int  `json:"limit" doc:"Page size used"`
	Offset  int  `json:"offset" doc:"Offset of the first item"`
	HasMore bool `json:"has_more" doc:"Whether more items exist"`
}

// PaginationQuery defines common pagination query parameters.
type PaginationQuery struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Page size"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Number of items to skip"`
}

// params converts query parameters to store pagination parameters.
func (q PaginationQuery) params() store.PaginationParams {
	p := store.PaginationParams{Limit: q.Limit, Offset: q.Offset}
	p.Validate()
	return p
}

// listResponse maps a store result onto the wire shape.
func listResponse[T any](result *store.PaginatedResult[T], q PaginationQuery) ListResponse[T] {
	return ListResponse[T]{
		Items:   result.Items,
		Total:   result.Total,
		Limit:   q.params().Limit,
		Offset:  q.params().Offset,
		HasMore: result.HasMore,
	}
}

// IDParam is a path parameter for resource IDs.
type IDParam struct {
	ID string `path:"id" doc:"Resource identifier"`
}

// MessageResponse is a simple success message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps a message response for huma.
type MessageOutput struct {
	Body MessageResponse
}
