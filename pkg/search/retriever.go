package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rubiojr/aurorax/pkg/api"
)

// Retriever downloads the result payload of a completed request.
type Retriever struct {
	Transport api.Transport
}

type dataEnvelope struct {
	Result []map[string]any `json:"result"`
	Error  *struct {
		Code    string `json:"error_code"`
		Message string `json:"error_message"`
	} `json:"error"`
}

// Raw fetches the result items without materialization. A non-nil
// responseFormat is POSTed as the field-selection document; otherwise the
// data URL is fetched with GET.
func (r *Retriever) Raw(ctx context.Context, dataURL string, responseFormat any) ([]map[string]any, error) {
	req := &api.Request{Method: http.MethodGet, URL: dataURL}
	if responseFormat != nil {
		req.Method = http.MethodPost
		req.Body = responseFormat
	}

	res, err := r.Transport.Execute(ctx, req)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, &DataRetrievalError{Message: "result file not found", Err: err}
		}
		if dre := clientErrorEnvelope(err); dre != nil {
			return nil, dre
		}
		return nil, fmt.Errorf("fetching data: %w", err)
	}

	var env dataEnvelope
	if err := json.Unmarshal(res.Data, &env); err != nil {
		return nil, &DataRetrievalError{Message: "malformed data response", Err: err}
	}
	if env.Error != nil {
		return nil, &DataRetrievalError{Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.Result == nil {
		return nil, &DataRetrievalError{Message: "response contains neither result nor error"}
	}
	return env.Result, nil
}

// Records fetches the result items with GET and materializes the fields
// listed in table.
func (r *Retriever) Records(ctx context.Context, dataURL string, table FieldTable) ([]Record, error) {
	items, err := r.Raw(ctx, dataURL, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := Materialize(item, table)
		if err != nil {
			return nil, fmt.Errorf("materializing result %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// clientErrorEnvelope extracts the data error object from a 4xx response
// other than an authentication failure.
func clientErrorEnvelope(err error) *DataRetrievalError {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode < 400 || apiErr.StatusCode >= 500 {
		return nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		return nil
	}
	var env dataEnvelope
	if json.Unmarshal(apiErr.Body, &env) != nil || env.Error == nil {
		return nil
	}
	return &DataRetrievalError{Code: env.Error.Code, Message: env.Error.Message, Err: err}
}
