package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/oceandata/pkg/db/pagination"
)

func parsePage(c *gin.Context) (pagination.Page, error) {
	return pagination.Parse(c.Query("limit"), c.Query("offset"))
}

// parseOptionalLimit returns 0 for an empty value so the service applies its default.
func parseOptionalLimit(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return 0, pagination.ErrInvalidPage
	}
	return parsed, nil
}
