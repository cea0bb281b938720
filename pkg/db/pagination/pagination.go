package pagination

import (
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

var ErrInvalidPage = errors.New("invalid_pagination")

// Page is an offset window over an ordered result set.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize clamps the window into the supported range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Apply limits the statement to the normalized window.
func (p Page) Apply(db *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return db.Limit(p.Limit).Offset(p.Offset)
}

// Parse reads limit and offset query values. Empty values fall back to defaults.
func Parse(limit, offset string) (Page, error) {
	page := Page{Limit: DefaultLimit}

	if value := strings.TrimSpace(limit); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			return Page{}, ErrInvalidPage
		}
		page.Limit = parsed
	}
	if value := strings.TrimSpace(offset); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return Page{}, ErrInvalidPage
		}
		page.Offset = parsed
	}

	return page.Normalize(), nil
}
