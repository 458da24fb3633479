package server

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paginationContext(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/sessions"+query, nil)
	return c
}

func TestGetPaginationParamsDefaults(t *testing.T) {
	params := GetPaginationParams(paginationContext(""))
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, DefaultPageSize, params.PageSize)
}

func TestGetPaginationParamsExplicit(t *testing.T) {
	params := GetPaginationParams(paginationContext("?page=3&page_size=50"))
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 50, params.PageSize)
}

func TestGetPaginationParamsClampsAndIgnoresGarbage(t *testing.T) {
	params := GetPaginationParams(paginationContext("?page=-1&page_size=9999"))
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, MaxPageSize, params.PageSize)

	params = GetPaginationParams(paginationContext("?page=abc&page_size=xyz"))
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, DefaultPageSize, params.PageSize)
}

func TestCalculateTotalPages(t *testing.T) {
	p := PaginationParams{Page: 1, PageSize: 20, Total: 45}
	assert.Equal(t, 3, p.CalculateTotalPages())

	p.Total = 40
	assert.Equal(t, 2, p.CalculateTotalPages())

	p.Total = 0
	assert.Equal(t, 0, p.CalculateTotalPages())
}
