package query

// Page size bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 500
)

// PageRequest selects one page of a listing. Page numbers start at 1.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps the request to valid bounds.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	switch {
	case r.PageSize <= 0:
		r.PageSize = DefaultPageSize
	case r.PageSize > MaxPageSize:
		r.PageSize = MaxPageSize
	}
	return r
}

// Offset returns the number of rows to skip.
func (r PageRequest) Offset() int {
	r = r.Normalize()
	return (r.Page - 1) * r.PageSize
}

// Page is one page of rows keyed by column name.
type Page struct {
	Rows     []map[string]any `json:"rows"`
	Total    int64            `json:"total"`
	Page     int              `json:"pageNum"`
	PageSize int              `json:"pageSize"`
}
