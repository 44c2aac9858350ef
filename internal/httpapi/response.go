package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// response decodes any body: JSON documents, newline-delimited JSON streams
// (as served by the workflow log endpoints) and plain text.
type response struct {
	Value any
}

func (r *response) Unmarshal(_ http.Header, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	data = bytes.TrimSpace(data)

	switch {
	case len(data) == 0:
		r.Value = nil
	case json.Valid(data):
		return json.Unmarshal(data, &r.Value)
	default:
		if values, ok := decodeStream(data); ok {
			r.Value = values
			return nil
		}
		r.Value = string(data)
	}
	return nil
}

func decodeStream(data []byte) ([]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var values []any
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false
		}
		values = append(values, v)
	}
	return values, len(values) > 0
}
