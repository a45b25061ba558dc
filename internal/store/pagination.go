package store

// PaginationParams contains pagination request parameters.
// The dashboard uses numbered pages, so pagination is offset-based.
type PaginationParams struct {
	Limit  int // Items per page (defaults to 50 with a maximum of 500)
	Offset int // Number of items to skip
}

// PaginatedResult contains paginated data and metadata.
type PaginatedResult[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// DefaultPaginationParams returns sensible defaults.
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{
		Limit:  50,
		Offset: 0,
	}
}

// Validate checks and corrects pagination parameters.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
