// Package search drives asynchronous AuroraX search requests from
// submission to result retrieval.
//
// # Overview
//
// The AuroraX API does not answer searches inline. A query is POSTed, the
// server replies 202 Accepted with the location of a request resource, and
// the client polls that resource until it either publishes a data URI or
// reports an error condition. Results are then downloaded from the data
// URI in a separate call.
//
// Every search type (conjunctions, ephemeris, data products) follows the
// same protocol and differs only in its endpoints and result records. The
// package therefore implements the protocol once and is parameterized by a
// Domain descriptor; the subpackages conjunctions, ephemeris and
// dataproducts provide the descriptors, query builders and typed records.
//
// # Components
//
//   - Job: the handle of one request and its client-side state machine
//   - Poller: single status fetches, wait loops and cancellation
//   - Retriever: result download and field materialization
//   - AdminService: privileged listing and deletion of requests
//
// # Lifecycle
//
// A Job moves through these states:
//
//	Unsubmitted -> Submitted -> Completed
//	                        \-> Errored
//	                        \-> Cancelled
//	Unsubmitted -> Errored (submission rejected)
//
// Completed, Errored and Cancelled are terminal. A failed result download
// leaves a Completed job Completed and returns an error matching
// ErrDataRetrieval; the remedy is Resubmit, not a retry.
//
// # Usage Examples
//
// Synchronous search:
//
//	c := search.NewClientFromConfig(cfg)
//	job, err := search.Run(ctx, c, ephemeris.Domain, &ephemeris.Query{
//		Start:    start,
//		End:      end,
//		Programs: []string{"swarm"},
//	}, search.RunOptions{})
//	if err != nil {
//		return err
//	}
//	for _, e := range job.Data() {
//		fmt.Println(e.Epoch, e.LocationGeo)
//	}
//
// Driving a job by hand:
//
//	job, err := search.NewJob(c, conjunctions.Domain, query, search.JobOptions{})
//	if err != nil {
//		return err // rejected before any network call
//	}
//	if err := job.Submit(ctx); err != nil {
//		return err
//	}
//	if err := job.Wait(ctx); err != nil {
//		return err // ctx expired; the server-side request keeps running
//	}
//	if job.State() == search.Completed {
//		err = job.GetData(ctx)
//	}
//
// # Concurrency
//
// A Job is driven by one goroutine at a time. Its accessors (State, Logs,
// LastStatus, Summary, Data) are safe to call from other goroutines and
// return snapshots. Clients, pollers and retrievers hold no per-request
// state and may be shared freely. WaitAll waits on several jobs at once.
package search
