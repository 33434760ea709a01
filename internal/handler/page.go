package handler

import (
	"strconv"

	"github.com/deppfellow/agent-chat-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// Pagination response headers.
const (
	HeaderOffset     = "X-Offset"
	HeaderNextOffset = "X-Next-Offset"
)

// PageRequest is the paging part of search and history bodies. A missing
// or zero limit means service.DefaultPageLimit.
type PageRequest struct {
	Offset int  `json:"offset" validate:"min=0"`
	Limit  *int `json:"limit" validate:"omitempty,min=0,max=1000"`
}

func (p PageRequest) limit() int {
	return service.PageLimit(p.Limit)
}

// writePageHeaders sets X-Offset, and X-Next-Offset when more items follow.
func writePageHeaders[T any](c echo.Context, page service.Page[T]) {
	header := c.Response().Header()
	header.Set(HeaderOffset, strconv.Itoa(page.Offset))
	if next, ok := page.NextOffset(); ok {
		header.Set(HeaderNextOffset, strconv.Itoa(next))
	}
}
