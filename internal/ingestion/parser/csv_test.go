package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVParsesHeaderAndRows(t *testing.T) {
	result, err := CSV{}.Parse(strings.NewReader("a,b\n1,2\n3,4\n"))
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Empty(t, result.RowErrors)

	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, result.Records[0].Fields)
	assert.Equal(t, map[string]any{"a": "3", "b": "4"}, result.Records[1].Fields)
	assert.JSONEq(t, `{"a":"1","b":"2"}`, string(result.Records[0].Raw))
}

func TestCSVRawKeepsHeaderOrder(t *testing.T) {
	result, err := CSV{}.Parse(strings.NewReader("zeta,alpha\nz,a\n"))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, `{"zeta":"z","alpha":"a"}`, string(result.Records[0].Raw))
}

func TestCSVQuotingAndWhitespace(t *testing.T) {
	input := "\n  name , habitat \n\n\"Cod, Atlantic\",  \"Shelf\"\n   \nTuna, open \"blue\" ocean\n"
	result, err := CSV{}.Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, result.RowErrors)
	require.Len(t, result.Records, 2)

	assert.Equal(t, "Cod, Atlantic", result.Records[0].Fields["name"])
	assert.Equal(t, "Shelf", result.Records[0].Fields["habitat"])
	assert.Equal(t, "Tuna", result.Records[1].Fields["name"])
	assert.Equal(t, `open "blue" ocean`, result.Records[1].Fields["habitat"])
}

func TestCSVFieldCountMismatchIsRowError(t *testing.T) {
	input := "a,b\n1,2\n3\n4,5,6\n7,8\n"
	result, err := CSV{}.Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	require.Len(t, result.RowErrors, 2)
	assert.Equal(t, 2, result.RowErrors[0].Row)
	assert.Equal(t, 3, result.RowErrors[1].Row)
	assert.Equal(t, "Row 2: expected 2 fields, got 1", result.RowErrors[0].String())
}

func TestCSVStripsBOMAndFixesHeaders(t *testing.T) {
	input := "\ufeffname,,name\nx,y,z\n"
	result, err := CSV{}.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, map[string]any{"name": "x", "column_2": "y", "name_2": "z"}, result.Records[0].Fields)
}

func TestCSVEmptyInput(t *testing.T) {
	result, err := CSV{}.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.RowErrors)
}

func TestCSVUnterminatedQuoteSkipsOnlyItsLine(t *testing.T) {
	result, err := CSV{}.Parse(strings.NewReader("a,b\n\"x,1\n2,3\n4,5\n6,7\n"))
	require.NoError(t, err)

	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, "Row 1: expected 2 fields, got 1", result.RowErrors[0].String())

	require.Len(t, result.Records, 3)
	assert.Equal(t, map[string]any{"a": "2", "b": "3"}, result.Records[0].Fields)
	assert.Equal(t, map[string]any{"a": "6", "b": "7"}, result.Records[2].Fields)
}

func TestCSVUnterminatedQuoteAfterBlankLine(t *testing.T) {
	result, err := CSV{}.Parse(strings.NewReader("a,b\n1,2\n\n\"oops\n3,4\n"))
	require.NoError(t, err)

	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, 2, result.RowErrors[0].Row)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "3", result.Records[1].Fields["a"])
}

func TestCSVMultilineQuotedFieldIsKept(t *testing.T) {
	result, err := CSV{}.Parse(strings.NewReader("name,notes\nCod,\"line one\nline two\"\nTuna,x\n"))
	require.NoError(t, err)
	assert.Empty(t, result.RowErrors)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "line one\nline two", result.Records[0].Fields["notes"])
	assert.Equal(t, "Tuna", result.Records[1].Fields["name"])
}
