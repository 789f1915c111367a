package search

import (
	"errors"
	"fmt"

	"github.com/rubiojr/aurorax/pkg/api"
)

var (
	// ErrNotFound is returned when the server does not know a request id.
	ErrNotFound = api.ErrNotFound

	// ErrUnauthorized is returned when privileged calls lack credentials.
	ErrUnauthorized = api.ErrUnauthorized

	// ErrMaintenance is returned while the API is in maintenance mode.
	ErrMaintenance = api.ErrMaintenance

	// ErrSubmission marks a rejected search submission.
	ErrSubmission = errors.New("search submission failed")

	// ErrDataRetrieval marks a completed search whose results cannot be
	// fetched (expired or evicted). Resubmitting the query is the remedy.
	ErrDataRetrieval = errors.New("search data retrieval failed")

	// ErrValidation marks a query rejected before it reached the server.
	ErrValidation = errors.New("invalid search query")

	// ErrSearchFailed marks a search the server finished with an error condition.
	ErrSearchFailed = errors.New("search failed")

	// ErrNotSubmitted is returned by operations that need a request id.
	ErrNotSubmitted = errors.New("search not submitted")

	// ErrNotCompleted is returned by GetData before results are available.
	ErrNotCompleted = errors.New("search not completed")
)

// SubmissionError reports a submission answered with anything but
// 202 Accepted plus a Location header.
type SubmissionError struct {
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrSubmission, e.Err)
	}
	return fmt.Sprintf("%v: unexpected status %d", ErrSubmission, e.StatusCode)
}

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

func (e *SubmissionError) Unwrap() error { return e.Err }

// DataRetrievalError carries the error object returned by a data endpoint.
type DataRetrievalError struct {
	Code    string
	Message string
	Err     error
}

func (e *DataRetrievalError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%v: %s: %s", ErrDataRetrieval, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", ErrDataRetrieval, e.Err)
	default:
		return fmt.Sprintf("%v: %s", ErrDataRetrieval, e.Message)
	}
}

func (e *DataRetrievalError) Is(target error) bool { return target == ErrDataRetrieval }

func (e *DataRetrievalError) Unwrap() error { return e.Err }

// ValidationError describes why a query was rejected client-side.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SearchFailedError is returned by Run when the server finished the search
// with its error condition set. Summary is the last server log message.
type SearchFailedError struct {
	RequestID string
	Summary   string
}

func (e *SearchFailedError) Error() string {
	return fmt.Sprintf("%v: request %s: %s", ErrSearchFailed, e.RequestID, e.Summary)
}

func (e *SearchFailedError) Is(target error) bool { return target == ErrSearchFailed }
