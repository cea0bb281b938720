package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const utf8BOM = "\ufeff"

// CSV parses a header row followed by data rows. Quotes are handled leniently
// and surrounding whitespace is trimmed from every field. A malformed row that
// swallowed several physical lines (an unterminated quote) is reported against
// its first line and parsing resumes on the line after it.
type CSV struct{}

func (CSV) Parse(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	result := &Result{}

	var header []string
	row := 0
	base := 0
	reader := newCSVReader(data)
	for {
		start := base + int(reader.InputOffset())
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		end := base + int(reader.InputOffset())

		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("%w: %v", ErrIO, err)
			}
			if header == nil {
				return nil, fmt.Errorf("%w: header: %v", ErrParse, err)
			}
			row++
			result.RowErrors = append(result.RowErrors, RowError{Row: row, Message: perr.Err.Error()})
			base = lineEnd(data, start)
			reader = newCSVReader(data[base:])
			continue
		}

		trimFields(fields)
		if blank(fields) {
			continue
		}

		if header == nil {
			header = headerNames(fields)
			continue
		}

		row++
		if len(fields) != len(header) {
			result.RowErrors = append(result.RowErrors, RowError{
				Row:     row,
				Message: fmt.Sprintf("expected %d fields, got %d", len(header), len(fields)),
			})
			if next := lineEnd(data, start); next < end {
				base = next
				reader = newCSVReader(data[base:])
			}
			continue
		}

		record, err := csvRecord(header, fields)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: row, Message: err.Error()})
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

func newCSVReader(data []byte) *csv.Reader {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

// lineEnd returns the offset just past the first non-empty physical line at or after start.
func lineEnd(data []byte, start int) int {
	for start < len(data) && (data[start] == '\n' || data[start] == '\r') {
		start++
	}
	i := bytes.IndexByte(data[start:], '\n')
	if i < 0 {
		return len(data)
	}
	return start + i + 1
}

func trimFields(fields []string) {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
}

func blank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}

// headerNames fills empty names and suffixes duplicates so every column keeps a key.
func headerNames(fields []string) []string {
	names := make([]string, len(fields))
	seen := make(map[string]int, len(fields))
	for i, name := range fields {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = name + "_" + strconv.Itoa(n)
		}
		names[i] = name
	}
	return names
}

// csvRecord keeps header order in the raw JSON.
func csvRecord(header, fields []string) (Record, error) {
	values := make(map[string]any, len(header))

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range header {
		values[name] = fields[i]

		key, err := json.Marshal(name)
		if err != nil {
			return Record{}, err
		}
		value, err := json.Marshal(fields[i])
		if err != nil {
			return Record{}, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return Record{Fields: values, Raw: json.RawMessage(buf.Bytes())}, nil
}
