package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PaginationParams contains pagination parameters
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total,omitempty"`
}

// DefaultPageSize is the default number of items per page
const DefaultPageSize = 20

// MaxPageSize is the maximum allowed page size
const MaxPageSize = 100

// GetPaginationParams extracts pagination parameters from the request
func GetPaginationParams(c *gin.Context) PaginationParams {
	params := PaginationParams{
		Page:     1,
		PageSize: DefaultPageSize,
	}

	if pageStr := c.Query("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			params.Page = page
		}
	}

	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		if pageSize, err := strconv.Atoi(pageSizeStr); err == nil && pageSize > 0 {
			if pageSize > MaxPageSize {
				pageSize = MaxPageSize
			}
			params.PageSize = pageSize
		}
	}

	return params
}

// CalculateTotalPages calculates the total number of pages based on total items
func (p PaginationParams) CalculateTotalPages() int {
	if p.Total == 0 {
		return 0
	}
	totalPages := p.Total / p.PageSize
	if p.Total%p.PageSize > 0 {
		totalPages++
	}
	return totalPages
}

// BuildPaginationResponse builds a standardized pagination response
func BuildPaginationResponse(params PaginationParams, items any) gin.H {
	totalPages := params.CalculateTotalPages()

	return gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        params.Page,
			"page_size":   params.PageSize,
			"total_items": params.Total,
			"total_pages": totalPages,
			"has_next":    params.Page < totalPages,
			"has_prev":    params.Page > 1,
		},
	}
}

// SendPaginatedResponse sends a paginated response
func SendPaginatedResponse(c *gin.Context, params PaginationParams, items any) {
	c.JSON(http.StatusOK, BuildPaginationResponse(params, items))
}
