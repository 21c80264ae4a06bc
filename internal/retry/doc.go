// Package retry decides how long to wait before re-attempting a failed task
// and whether re-attempting makes sense at all. Policies are immutable and
// safe for concurrent use; the retry loop itself lives in Policy.Run and is
// meant for callers that wrap a single-attempt executor.
package retry
