package main

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskexport/internal/config"
	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/platform/logger"
	"github.com/phrazzld/taskexport/internal/task"
)

// countingSubmitter records every submission before delegating.
type countingSubmitter struct {
	next  task.Submitter
	count atomic.Int64
}

func (c *countingSubmitter) Submit(ctx context.Context, t domain.Task) *task.Future {
	c.count.Add(1)
	return c.next.Submit(ctx, t)
}

func newTestApplication(t *testing.T) *application {
	t.Helper()

	setupTestEnv(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	log, _ := logger.GetTestLogger(t)
	app, err := newApplication(context.Background(), cfg, log, afero.NewOsFs())
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func TestApplication_RunBatchSubmitsEveryTask(t *testing.T) {
	app := newTestApplication(t)
	counter := &countingSubmitter{next: app.submitter}
	app.submitter = counter

	tasks := []domain.Task{
		{PlaygroundID: "ws1", ID: "a", Query: "SELECT 1 AS n"},
		{PlaygroundID: "ws1", ID: "b", Query: "SELECT 2 AS n"},
		{PlaygroundID: "ws2", ID: "c", Query: "SELECT 3 AS n"},
	}

	var out bytes.Buffer
	outcomes, err := app.runBatch(context.Background(), tasks, &batchOptions{parallel: 2}, &out)
	require.NoError(t, err)

	assert.Equal(t, int64(len(tasks)), counter.count.Load())
	require.Len(t, outcomes, len(tasks))
	for i, o := range outcomes {
		assert.Equal(t, tasks[i].ID, o.Result.TaskID())
		assert.Equal(t, domain.StatusSuccess, o.Result.State())
		assert.Equal(t, 1, o.Attempts)
	}
	assert.Equal(t, len(tasks), bytes.Count(out.Bytes(), []byte("\n")))
}

func TestApplication_RunTaskRetriesThroughSubmit(t *testing.T) {
	app := newTestApplication(t)
	counter := &countingSubmitter{next: app.submitter}
	app.submitter = counter

	outcome, err := app.runTask(context.Background(),
		domain.Task{PlaygroundID: "ws1", ID: "t-missing", Query: "SELECT * FROM missing_table"}, true)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, outcome.Result.State())
	assert.Equal(t, 1, outcome.Attempts, "permanent failures are not retried")
	assert.Equal(t, int64(1), counter.count.Load())
}
