// Package objectstore publishes export artifacts to durable object storage:
// Google Cloud Storage in production and a bucket-shaped directory tree for
// local runs and tests.
package objectstore
