package elasticsearch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// apiError is an error response from the REST API.
type apiError struct {
	Status int
	Type   string
	Reason string
}

func (e *apiError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("[%d] %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Status, e.Type, e.Reason)
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// decode returns a function that checks a response and decodes its JSON
// body into target. Numbers decode as json.Number. A nil target discards
// the body.
func (a *Adapter) decode(op string, target interface{}) func(*esapi.Response, error) error {
	return func(res *esapi.Response, err error) error {
		if err != nil {
			return adapter.WrapError(a.GetDatabaseType(), op, err)
		}
		if res.Body != nil {
			defer res.Body.Close()
		}
		if res.IsError() {
			return adapter.NewDatabaseError(a.GetDatabaseType(), op, parseError(res))
		}
		if target == nil || res.Body == nil {
			return nil
		}
		dec := json.NewDecoder(res.Body)
		dec.UseNumber()
		if err := dec.Decode(target); err != nil {
			return adapter.WrapError(a.GetDatabaseType(), op, fmt.Errorf("error parsing response: %w", err))
		}
		return nil
	}
}

func parseError(res *esapi.Response) error {
	apiErr := &apiError{Status: res.StatusCode, Reason: http.StatusText(res.StatusCode)}
	if res.Body == nil {
		return apiErr
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return apiErr
	}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil || len(body.Error) == 0 {
		apiErr.Reason = string(raw)
		return apiErr
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body.Error, &detail) == nil && detail.Reason != "" {
		apiErr.Type, apiErr.Reason = detail.Type, detail.Reason
		return apiErr
	}
	var text string
	if json.Unmarshal(body.Error, &text) == nil {
		apiErr.Reason = text
	}
	return apiErr
}

// encode renders a request body.
func encode(v interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}

// normalize turns json.Number into int64 or float64, recursively.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]interface{}:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []interface{}:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}
