package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/smallbiznis/oceandata/internal/dataset/domain"
)

var (
	ErrParse             = errors.New("parse_error")
	ErrIO                = errors.New("io_error")
	ErrUnsupportedFormat = errors.New("unsupported_format")
)

// Record is one raw input row keyed by the field names found in the source.
// Values are strings for CSV and decoded JSON values (json.Number for numbers) for JSON.
type Record struct {
	Fields map[string]any
	Raw    json.RawMessage
}

// RowError reports a skipped row. Row is the 1-based index of the data row.
type RowError struct {
	Row     int
	Message string
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

type Result struct {
	Records   []Record
	RowErrors []RowError
}

type Parser interface {
	Parse(r io.Reader) (*Result, error)
}

// ForFormat selects the parser for a declared dataset format.
func ForFormat(format domain.Format) (Parser, error) {
	switch format {
	case domain.FormatCSV:
		return CSV{}, nil
	case domain.FormatJSON:
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ParseFile opens path and runs the parser for format over it.
func ParseFile(path string, format domain.Format) (*Result, error) {
	p, err := ForFormat(format)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()
	return p.Parse(f)
}
