// Package domain defines the entities exchanged between the task execution
// engine and its callers: the Task to run, the Status lifecycle enumeration,
// and the immutable StepResult produced by each execution attempt.
package domain
