// Package retry owns the embedding failure lifecycle: it re-drives pending
// and retrying records through the embedding generator, applies the bounded
// retry state machine (pending/retry -> success, retry -> failed once the
// attempt budget is spent), honors an escalating backoff window between
// attempts, and exposes the manual reset that returns a failed record to the
// queue. It is the only component that converts embedding errors into
// persisted state instead of propagating them.
package retry
