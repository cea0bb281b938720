package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// arrayKeys are the wrapper fields checked, in order, for the record array.
var arrayKeys = []string{"records", "data", "results"}

// JSON accepts a bare array, an object wrapping the array under one of
// arrayKeys, or a single object treated as one record.
type JSON struct{}

func (JSON) Parse(r io.Reader) (*Result, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	body = bytes.TrimPrefix(body, []byte(utf8BOM))

	if !json.Valid(body) {
		var probe any
		err := json.Unmarshal(body, &probe)
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	elements, err := recordElements(body)
	if err != nil {
		return nil, err
	}

	result := &Result{Records: make([]Record, 0, len(elements))}
	for i, element := range elements {
		record, err := jsonRecord(element)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

func recordElements(body []byte) ([]json.RawMessage, error) {
	switch firstByte(body) {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(body, &elements); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return elements, nil
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		for _, key := range arrayKeys {
			candidate, ok := wrapper[key]
			if !ok || firstByte(candidate) != '[' {
				continue
			}
			var elements []json.RawMessage
			if err := json.Unmarshal(candidate, &elements); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrParse, key, err)
			}
			return elements, nil
		}
		return []json.RawMessage{body}, nil
	default:
		return nil, fmt.Errorf("%w: top-level value must be an object or an array", ErrParse)
	}
}

func jsonRecord(element json.RawMessage) (Record, error) {
	if firstByte(element) != '{' {
		return Record{}, errors.New("record is not a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(element))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Record{}, err
	}

	var raw bytes.Buffer
	if err := json.Compact(&raw, element); err != nil {
		return Record{}, err
	}
	return Record{Fields: fields, Raw: json.RawMessage(raw.Bytes())}, nil
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
