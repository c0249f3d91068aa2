package common

import (
	"net/http"
	"strconv"

	"collective-rides/application/ports"
)

// CursorParams are the list parameters accepted by every listing endpoint
type CursorParams struct {
	Limit  int
	Cursor string
}

// ExtractCursorParams reads limit and cursor from the query string. An unparsable
// limit falls back to the default; out-of-range limits are clamped.
func ExtractCursorParams(r *http.Request) CursorParams {
	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil {
			limit = l
		}
	}
	return CursorParams{
		Limit:  ports.ClampLimit(limit),
		Cursor: query.Get("cursor"),
	}
}

// ListOptions converts the parameters for the repository layer
func (p CursorParams) ListOptions() ports.ListOptions {
	return ports.ListOptions{Limit: p.Limit, Cursor: p.Cursor}
}

// BuildCursorMeta builds pagination metadata for a page of results
func BuildCursorMeta[T any](page ports.Page[T], limit int) *PaginationInfo {
	return &PaginationInfo{
		Limit:      limit,
		Count:      len(page.Items),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
}
