package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/rubiojr/aurorax/pkg/api"
)

const (
	adminRequestsPath = "api/v1/utils/admin/search_requests"
)

// ListSearchTypes are the search_type values accepted by the listing endpoint.
var ListSearchTypes = []string{"conjunction", "data_product", "ephemeris"}

// SortColumns are the RequestSummary columns SortRequests can order by.
var SortColumns = []string{
	"search_type",
	"active",
	"error_condition",
	"file_size",
	"ip_address",
	"query_duration",
	"requested",
	"result_count",
	"result_file_exists",
}

// ListFilter narrows the admin request listing. Nil fields are not sent.
type ListFilter struct {
	// SearchType must be one of ListSearchTypes when set.
	SearchType string

	Active *bool

	// Start and End bound the request timestamp.
	Start *time.Time
	End   *time.Time

	// FileSize is in kilobytes.
	FileSize *int64

	ResultCount *int64

	// QueryDuration is in milliseconds.
	QueryDuration *int64

	ErrorCondition *bool
}

// Validate checks the filter without contacting the server.
func (f ListFilter) Validate() error {
	if f.SearchType != "" && !slices.Contains(ListSearchTypes, f.SearchType) {
		return &ValidationError{
			Field:   "search_type",
			Message: fmt.Sprintf("unknown value %q, supported values are %v", f.SearchType, ListSearchTypes),
		}
	}
	return nil
}

// Params encodes the filter as query parameters.
func (f ListFilter) Params() url.Values {
	v := url.Values{}
	if f.SearchType != "" {
		v.Set("search_type", f.SearchType)
	}
	if f.Active != nil {
		v.Set("active", strconv.FormatBool(*f.Active))
	}
	if f.Start != nil {
		v.Set("start", f.Start.UTC().Format(EpochLayout))
	}
	if f.End != nil {
		v.Set("end", f.End.UTC().Format(EpochLayout))
	}
	if f.FileSize != nil {
		v.Set("file_size", strconv.FormatInt(*f.FileSize, 10))
	}
	if f.ResultCount != nil {
		v.Set("result_count", strconv.FormatInt(*f.ResultCount, 10))
	}
	if f.QueryDuration != nil {
		v.Set("query_duration", strconv.FormatInt(*f.QueryDuration, 10))
	}
	if f.ErrorCondition != nil {
		v.Set("error_condition", strconv.FormatBool(*f.ErrorCondition))
	}
	return v
}

// RequestSummary is one row of the admin request listing.
type RequestSummary struct {
	RequestID        string    `json:"request_id"`
	SearchType       string    `json:"search_type"`
	Active           bool      `json:"active"`
	IPAddress        string    `json:"ip_address"`
	Requested        Timestamp `json:"requested"`
	ResultFileExists bool      `json:"result_file_exists"`
	ResultCount      *int64    `json:"result_count"`
	QueryDuration    *int64    `json:"query_duration"`
	FileSize         *int64    `json:"file_size"`
	ErrorCondition   bool      `json:"error_condition"`
}

// AdminService lists and deletes search requests. Every call requires an
// administrator API key.
type AdminService struct {
	client *Client
}

// List returns the requests matching filter. The filter is validated
// before any network call.
func (s *AdminService) List(ctx context.Context, filter ListFilter) ([]RequestSummary, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	res, err := s.client.transport.Execute(ctx, &api.Request{
		Method: http.MethodGet,
		URL:    s.client.url(adminRequestsPath),
		Params: filter.Params(),
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, fmt.Errorf("an administrator API key is required to list search requests: %w", err)
		}
		return nil, fmt.Errorf("listing search requests: %w", err)
	}

	var out []RequestSummary
	if err := res.Decode(&out); err != nil {
		return nil, fmt.Errorf("listing search requests: %w", err)
	}
	return out, nil
}

// Delete removes a request and its result file. Only a 200 response counts
// as success.
func (s *AdminService) Delete(ctx context.Context, requestID string) error {
	res, err := s.client.transport.Execute(ctx, &api.Request{
		Method:       http.MethodDelete,
		URL:          s.client.url(adminRequestsPath + "/" + url.PathEscape(requestID)),
		NullResponse: true,
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fmt.Errorf("an administrator API key is required to delete search requests: %w", err)
		}
		return fmt.Errorf("deleting search request %s: %w", requestID, err)
	}
	if res.StatusCode == http.StatusOK {
		return nil
	}

	apiErr := &api.Error{StatusCode: res.StatusCode}
	var body struct {
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	}
	if len(res.Data) > 0 && res.Decode(&body) == nil {
		apiErr.Code = body.ErrorCode
		apiErr.Message = body.ErrorMessage
	}
	return fmt.Errorf("deleting search request %s: %w", requestID, apiErr)
}

// SortOptions control SortRequests. Empty columns default to "requested".
type SortOptions struct {
	Order       string
	SecondOrder string
	Reversed    bool

	// Limit keeps the first N rows after ordering; zero keeps all.
	Limit int
}

// SortRequests orders rows by Order then SecondOrder, ascending, optionally
// reversed and truncated. Missing numeric values sort first. The input
// slice is not modified.
func SortRequests(rows []RequestSummary, opts SortOptions) ([]RequestSummary, error) {
	first, err := sortKey(opts.Order)
	if err != nil {
		return nil, err
	}
	second, err := sortKey(opts.SecondOrder)
	if err != nil {
		return nil, err
	}

	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b RequestSummary) int {
		if c := first(a, b); c != 0 {
			return c
		}
		return second(a, b)
	})
	if opts.Reversed {
		slices.Reverse(out)
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

type compareFunc func(a, b RequestSummary) int

func sortKey(column string) (compareFunc, error) {
	switch column {
	case "", "requested":
		return func(a, b RequestSummary) int { return a.Requested.Compare(b.Requested.Time) }, nil
	case "search_type":
		return func(a, b RequestSummary) int { return cmp.Compare(a.SearchType, b.SearchType) }, nil
	case "ip_address":
		return func(a, b RequestSummary) int { return cmp.Compare(a.IPAddress, b.IPAddress) }, nil
	case "active":
		return func(a, b RequestSummary) int { return compareBool(a.Active, b.Active) }, nil
	case "error_condition":
		return func(a, b RequestSummary) int { return compareBool(a.ErrorCondition, b.ErrorCondition) }, nil
	case "result_file_exists":
		return func(a, b RequestSummary) int { return compareBool(a.ResultFileExists, b.ResultFileExists) }, nil
	case "file_size":
		return func(a, b RequestSummary) int { return compareOptional(a.FileSize, b.FileSize) }, nil
	case "query_duration":
		return func(a, b RequestSummary) int { return compareOptional(a.QueryDuration, b.QueryDuration) }, nil
	case "result_count":
		return func(a, b RequestSummary) int { return compareOptional(a.ResultCount, b.ResultCount) }, nil
	}
	return nil, &ValidationError{
		Field:   "order",
		Message: fmt.Sprintf("unknown column %q, supported columns are %v", column, SortColumns),
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareOptional(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}
