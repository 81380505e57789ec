package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeError reports a page body that does not match the list response shape.
// Key is the path of the offending field ("" for the top level).
type DecodeError struct {
	Key    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Key == "" {
		return "decode movie page: " + e.Reason
	}
	return fmt.Sprintf("decode movie page: %s: %s", e.Key, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reasons carried by DecodeError.
const (
	reasonMissing   = "missing required field"
	reasonNull      = "required field is null"
	reasonInvalid   = "invalid value"
	reasonNotObject = "not a JSON object"
)

var jsonNull = []byte("null")

type object map[string]json.RawMessage

// DecodePage parses a TMDb list/search response. Required fields must be
// present, non-null and of the right type; poster_path and vote_average may be
// absent or null. Any failure rejects the whole page.
func DecodePage(data []byte) (*MoviePage, error) {
	obj, err := decodeObject(data, "")
	if err != nil {
		return nil, err
	}

	var p MoviePage
	if err := required(obj, "", "page", &p.Page); err != nil {
		return nil, err
	}
	if err := required(obj, "", "total_pages", &p.TotalPages); err != nil {
		return nil, err
	}
	if err := required(obj, "", "total_results", &p.TotalResults); err != nil {
		return nil, err
	}

	var results []json.RawMessage
	if err := required(obj, "", "results", &results); err != nil {
		return nil, err
	}

	p.Movies = make([]MovieSummary, 0, len(results))
	for i, raw := range results {
		m, err := decodeMovie(raw, fmt.Sprintf("results[%d]", i))
		if err != nil {
			return nil, err
		}
		p.Movies = append(p.Movies, m)
	}
	return &p, nil
}

func decodeMovie(data []byte, path string) (MovieSummary, error) {
	var m MovieSummary
	obj, err := decodeObject(data, path)
	if err != nil {
		return m, err
	}

	if err := required(obj, path, "id", &m.ID); err != nil {
		return m, err
	}
	if err := required(obj, path, "title", &m.Title); err != nil {
		return m, err
	}
	if err := required(obj, path, "overview", &m.Overview); err != nil {
		return m, err
	}
	if err := required(obj, path, "release_date", &m.ReleaseDate); err != nil {
		return m, err
	}
	if m.PosterPath, err = optional[string](obj, path, "poster_path"); err != nil {
		return m, err
	}
	if m.VoteAverage, err = optional[float64](obj, path, "vote_average"); err != nil {
		return m, err
	}
	return m, nil
}

func decodeObject(data []byte, path string) (object, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &DecodeError{Key: path, Reason: reasonNotObject}
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, &DecodeError{Key: path, Reason: reasonNotObject, Err: err}
	}
	return obj, nil
}

func required[T any](obj object, path, key string, dst *T) error {
	raw, ok := obj[key]
	if !ok {
		return &DecodeError{Key: joinKey(path, key), Reason: reasonMissing}
	}
	if isNull(raw) {
		return &DecodeError{Key: joinKey(path, key), Reason: reasonNull}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &DecodeError{Key: joinKey(path, key), Reason: reasonInvalid, Err: err}
	}
	return nil
}

func optional[T any](obj object, path, key string) (*T, error) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &DecodeError{Key: joinKey(path, key), Reason: reasonInvalid, Err: err}
	}
	return &v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
