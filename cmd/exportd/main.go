// Package main implements exportd, a command-line front end to the task
// executor: it runs single export tasks or batches of them against a
// relational source and publishes the results to object storage.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
