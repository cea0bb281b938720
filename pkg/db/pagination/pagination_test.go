package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	page, err := Parse("", "")
	require.NoError(t, err)
	assert.Equal(t, Page{Limit: DefaultLimit, Offset: 0}, page)
}

func TestParseClampsLimit(t *testing.T) {
	page, err := Parse("5000", "10")
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, page.Limit)
	assert.Equal(t, 10, page.Offset)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, tc := range []struct{ limit, offset string }{
		{"abc", ""},
		{"0", ""},
		{"", "-1"},
		{"10", "x"},
	} {
		_, err := Parse(tc.limit, tc.offset)
		assert.ErrorIs(t, err, ErrInvalidPage, "limit=%q offset=%q", tc.limit, tc.offset)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultLimit}, Page{Limit: -3, Offset: -1}.Normalize())
}
