// Package task runs export tasks. An Executor takes one domain.Task through
// a single attempt of the pipeline
//
//	acquire connection → execute query → export rows → publish artifact → cleanup
//
// and always produces exactly one domain.StepResult. The collaborators it
// depends on (connection pool, object storage, step persistence) are
// described by the interfaces in this package and injected at construction.
// Retrying is left to callers; see the retry package.
package task
