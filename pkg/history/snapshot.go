package history

import (
	"time"

	"github.com/rubiojr/aurorax/pkg/search"
)

// Snapshot captures the journal view of a job. Unsubmitted jobs have no
// request id and yield an entry Record rejects.
func Snapshot[T any](j *search.Job[T]) Entry {
	sum := j.Summary()
	e := Entry{
		RequestID:       j.ID(),
		Domain:          j.Domain().Name,
		RequestURL:      j.RequestURL(),
		Query:           j.Query(),
		State:           j.State().String(),
		ResultCount:     sum.ResultCount,
		FileSize:        sum.FileSizeBytes,
		QueryDurationMs: sum.QueryDurationMs,
		UpdatedAt:       time.Now().UTC(),
	}
	if st := j.LastStatus(); st != nil {
		e.LastLog = st.LastLog()
		if !st.SearchRequest.Requested.IsZero() {
			e.SubmittedAt = st.SearchRequest.Requested.Time
		}
	}
	return e
}
