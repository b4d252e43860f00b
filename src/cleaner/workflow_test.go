/*
Copyright (c) Akim Faskhutdinov

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cleaner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akimrx/ch-metrics-cleaner/src/chdb"
	"github.com/akimrx/ch-metrics-cleaner/src/errs"
)

// fakeExecutor answers statements by shape and records everything it was
// asked to execute.
type fakeExecutor struct {
	statements   []string
	searchRows   []chdb.Row
	mutationRows []chdb.Row
	searchErr    error
	deleteErr    error
	mutationErr  error
}

func (f *fakeExecutor) Execute(ctx context.Context, statement string, format chdb.Format) (*chdb.Result, error) {
	f.statements = append(f.statements, statement)
	switch {
	case strings.HasPrefix(statement, "ALTER TABLE"):
		if f.deleteErr != nil {
			return nil, f.deleteErr
		}
		return &chdb.Result{Text: ""}, nil
	case strings.Contains(statement, "system.mutations"):
		if f.mutationErr != nil {
			return nil, f.mutationErr
		}
		return &chdb.Result{Rows: f.mutationRows}, nil
	default:
		if f.searchErr != nil {
			return nil, f.searchErr
		}
		return &chdb.Result{Rows: f.searchRows}, nil
	}
}

func (f *fakeExecutor) deletes() []string {
	return lo.Filter(f.statements, func(s string, _ int) bool {
		return strings.HasPrefix(s, "ALTER TABLE")
	})
}

func (f *fakeExecutor) searches() []string {
	return lo.Filter(f.statements, func(s string, _ int) bool {
		return strings.HasPrefix(s, "SELECT DISTINCT")
	})
}

// scriptedConfirmer answers every question with a fixed reply and counts
// how often it was asked.
type scriptedConfirmer struct {
	answer bool
	asked  int
}

func (c *scriptedConfirmer) Confirm(prompt string) bool {
	c.asked++
	return c.answer
}

var testRequest = QueryRequest{Prefix: "one.two", Key: "Path", Database: "graphite", Table: "data"}

func newTestWorkflow(executor Executor, confirm Confirmer, opts Options) (*Workflow, *bytes.Buffer) {
	out := &bytes.Buffer{}
	opts.Out = out
	return New(executor, confirm, opts), out
}

func TestRunNoMatches(t *testing.T) {
	executor := &fakeExecutor{}
	confirm := &scriptedConfirmer{answer: true}
	workflow, out := newTestWorkflow(executor, confirm, Options{})

	err := workflow.Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Zero(t, confirm.asked)
	assert.Empty(t, executor.deletes())
	assert.Contains(t, out.String(), "No matches were found for the prefix 'one.two'")
}

func TestRunConfirmedDelete(t *testing.T) {
	executor := &fakeExecutor{
		searchRows: []chdb.Row{
			{"Path": "one.two.a"},
			{"Path": "one.two.b"},
		},
		mutationRows: []chdb.Row{
			{"parts_to_do": "0", "is_done": float64(1), "latest_failed_part": ""},
		},
	}
	confirm := &scriptedConfirmer{answer: true}
	workflow, out := newTestWorkflow(executor, confirm, Options{})

	err := workflow.Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, 1, confirm.asked)
	require.Len(t, executor.deletes(), 1)
	assert.Equal(t, "ALTER TABLE graphite.data DELETE WHERE match(Path, '^one.two')", executor.deletes()[0])

	output := out.String()
	assert.Contains(t, output, "Matches found for the prefix 'one.two' (unique keys count: 2)")
	assert.Contains(t, output, "- one.two.a")
	assert.Contains(t, output, "Mutation status for 'graphite.data'")
	assert.Contains(t, output, "In Progress: 0")
}

func TestRunCancelled(t *testing.T) {
	executor := &fakeExecutor{
		searchRows: []chdb.Row{{"Path": "one.two.a"}},
	}
	confirm := &scriptedConfirmer{answer: false}
	workflow, out := newTestWorkflow(executor, confirm, Options{})

	err := workflow.Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, 1, confirm.asked)
	assert.Empty(t, executor.deletes())
	assert.Contains(t, out.String(), "Deletion canceled for the prefix 'one.two'")
}

func TestRunForceSkipsSearchAndConfirmation(t *testing.T) {
	executor := &fakeExecutor{}
	confirm := &scriptedConfirmer{answer: false}
	workflow, out := newTestWorkflow(executor, confirm, Options{Force: true})

	err := workflow.Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Zero(t, confirm.asked)
	assert.Empty(t, executor.searches())
	require.Len(t, executor.deletes(), 1)

	output := out.String()
	assert.Contains(t, output, "source=graphite.data key=Path, prefix=one.two")
	assert.Contains(t, output, "Started a mutation for delete match(Path, '^one.two') in graphite.data")
}

func TestRunSearchFailureContinuesBatch(t *testing.T) {
	executor := &fakeExecutor{
		searchErr: errs.NewQueryError("SELECT DISTINCT ...", 500, "DB::Exception", nil),
	}
	confirm := &scriptedConfirmer{answer: true}
	workflow, out := newTestWorkflow(executor, confirm, Options{})

	// Search failures are reported but must not abort the batch.
	err := workflow.Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Zero(t, confirm.asked)
	assert.Empty(t, executor.deletes())
	assert.Contains(t, out.String(), "HTTP 500")
}

func TestRunDeleteFailureSkipsTracking(t *testing.T) {
	executor := &fakeExecutor{
		searchRows: []chdb.Row{{"Path": "one.two.a"}},
		deleteErr:  errs.NewQueryError("ALTER TABLE ...", 500, "DB::Exception", nil),
	}
	confirm := &scriptedConfirmer{answer: true}
	workflow, out := newTestWorkflow(executor, confirm, Options{})

	err := workflow.Run(context.Background(), testRequest)
	require.NoError(t, err)

	assert.NotContains(t, out.String(), "Mutation status")
	// No status query was issued after the failed delete.
	for _, s := range executor.statements {
		assert.NotContains(t, s, "system.mutations")
	}
}

func TestRunPollingFailureTerminates(t *testing.T) {
	executor := &fakeExecutor{
		searchRows:  []chdb.Row{{"Path": "one.two.a"}},
		mutationErr: errs.NewQueryError("SELECT * FROM system.mutations ...", 502, "Bad Gateway", nil),
	}
	confirm := &scriptedConfirmer{answer: true}
	workflow, _ := newTestWorkflow(executor, confirm, Options{})

	err := workflow.Run(context.Background(), testRequest)
	require.Error(t, err)

	var queryErr errs.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, 502, queryErr.StatusCode())
}

func TestCheckMutationsFullReport(t *testing.T) {
	executor := &fakeExecutor{
		mutationRows: []chdb.Row{
			{"parts_to_do": "2", "is_done": float64(0), "latest_failed_part": ""},
			{"parts_to_do": "0", "is_done": float64(1), "latest_failed_part": ""},
			{"parts_to_do": "0", "is_done": float64(0), "latest_failed_part": "202304_1_1_0"},
		},
	}
	workflow, out := newTestWorkflow(executor, &scriptedConfirmer{}, Options{})

	err := workflow.CheckMutations(context.Background(), "graphite", "data", false, false)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "One of the mutations failed with an error.")
	assert.Contains(t, output, "In Progress: 1")
	assert.Contains(t, output, "Completed: 1")
	assert.Contains(t, output, "Failed: 1")
	assert.Contains(t, output, "Total: 3")
}

func TestStdinConfirmerAnswers(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"да\n", true},
		{"д\n", true},
		{"n\n", false},
		{"N\n", false},
		{"no\n", false},
		{"whatever\n", false},
		{"\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			confirmer := NewStdinConfirmer(strings.NewReader(tt.input))
			assert.Equal(t, tt.expected, confirmer.Confirm(""))
		})
	}
}
