package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
	defaultSort  = "-createdAt"
)

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// pageQuery is the page/limit/sort triple shared by every list endpoint.
type pageQuery struct {
	Page  int
	Limit int
	Sort  string
}

func (p pageQuery) Offset() int {
	return (p.Page - 1) * p.Limit
}

func parsePageQuery(ctx *gin.Context) (pageQuery, bool) {
	page := parseIntDefault(ctx.Query("page"), defaultPage)
	limit := parseIntDefault(ctx.Query("limit"), defaultLimit)

	if page < 1 {
		RespondBadRequest(ctx, "page must be a positive integer", nil)
		return pageQuery{}, false
	}

	if limit < 1 || limit > maxLimit {
		RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
		return pageQuery{}, false
	}

	sort := ctx.Query("sort")
	if sort == "" {
		sort = defaultSort
	}

	return pageQuery{Page: page, Limit: limit, Sort: sort}, true
}

func buildPagination(total int, q pageQuery) Pagination {
	pages := total / q.Limit

	if total%q.Limit != 0 {
		pages++
	}

	return Pagination{
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
		Pages: pages,
	}
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}

	n, err := strconv.Atoi(s)

	if err != nil {
		return fallback
	}

	return n
}
