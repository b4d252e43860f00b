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

// Package cleaner ties together search, operator confirmation, delete and
// mutation tracking for one (prefix, table) pair at a time.
package cleaner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/akimrx/ch-metrics-cleaner/src/chdb"
	"github.com/akimrx/ch-metrics-cleaner/src/mutation"
)

// DefaultPollInterval is the fixed sleep between mutation status polls.
const DefaultPollInterval = 500 * time.Millisecond

var grey = color.New(color.FgHiBlack).SprintfFunc()

// Executor executes one statement against the database. *chdb.Client
// satisfies this; tests substitute scripted executors.
type Executor interface {
	Execute(ctx context.Context, statement string, format chdb.Format) (*chdb.Result, error)
}

// QueryRequest parameterizes one search/delete pair. Constructed per
// invocation, never persisted.
type QueryRequest struct {
	Prefix   string
	Key      string
	Database string
	Table    string
}

// Options configures a Workflow.
type Options struct {
	// Force skips search and confirmation and goes straight to the delete.
	// The server starts a mutation even when nothing matches; that is a
	// known quirk of the database, not something the tool compensates for.
	Force bool

	// AwaitMutationEnd blocks after a delete until the table's mutations
	// resolve.
	AwaitMutationEnd bool

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	// Out receives user-facing output. Default: os.Stdout.
	Out io.Writer
}

// Workflow runs the search -> confirm -> delete -> track sequence. All
// methods are synchronous and single-threaded; the only suspension is the
// sleep inside the poll loop.
type Workflow struct {
	client  Executor
	confirm Confirmer
	opts    Options
}

func New(client Executor, confirm Confirmer, opts Options) *Workflow {
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Workflow{client: client, confirm: confirm, opts: opts}
}

// Run processes one (prefix, table) pair. A query failure during search or
// delete is reported and swallowed so the caller can continue with the rest
// of the batch; a failure while tracking mutation status is returned.
func (w *Workflow) Run(ctx context.Context, req QueryRequest) error {
	if w.opts.Force {
		w.forceDelete(ctx, req)
		return nil
	}

	matches, err := w.search(ctx, req)
	if err != nil {
		log.Errorf("search failed: %s", err)
		w.printf("%s\n", color.RedString("%s", err))
		return nil
	}
	if len(matches) == 0 {
		w.printf("%s\n", grey("No matches were found for the prefix '%s'", req.Prefix))
		return nil
	}

	w.printf("%s\n", color.GreenString("\nMatches found for the prefix '%s' (unique keys count: %d)", req.Prefix, len(matches)))
	for _, match := range matches {
		w.printf("- %s\n", match)
	}

	if !w.confirm.Confirm(color.RedString("Do you want to delete them? [y/n]: ")) {
		w.printf("%s\n", color.RedString("Deletion canceled for the prefix '%s'", req.Prefix))
		return nil
	}

	if err := w.delete(ctx, req); err != nil {
		log.Errorf("delete failed: %s", err)
		w.printf("%s\n", color.RedString("%s", err))
		return nil
	}
	return w.CheckMutations(ctx, req.Database, req.Table, w.opts.AwaitMutationEnd, true)
}

// CheckMutations reports today's mutation status for database.table,
// optionally blocking until every mutation resolves. pretty selects the
// short post-delete form of the report.
func (w *Workflow) CheckMutations(ctx context.Context, database, table string, awaitEnd, pretty bool) error {
	statement := chdb.BuildMutationStatusQuery(database, table, time.Now())
	fetch := func() ([]mutation.Record, error) {
		result, err := w.client.Execute(ctx, statement, chdb.FormatStructured)
		if err != nil {
			return nil, err
		}
		return mutation.RecordsFromRows(result.Rows), nil
	}

	records, err := fetch()
	if err != nil {
		return err
	}
	summary := mutation.Summarize(records)

	if awaitEnd && !summary.Resolved() {
		w.printf("%s\n", grey("\nWaiting for the mutation to complete..."))
		summary, err = mutation.AwaitCompletion(fetch, w.opts.PollInterval)
		if err != nil {
			return err
		}
	}

	if summary.Failed > 0 {
		w.printf("%s\n", color.RedString("One of the mutations failed with an error. Use clickhouse-client for details."))
	}

	w.printf("\n%s\n", titleStyle.Render(fmt.Sprintf("Mutation status for '%s.%s'", database, table)))
	w.printf("%s\n", ruleStyle.Render(strings.Repeat("-", ruleWidth)))
	if pretty {
		w.printf("In Progress: %d \nFailed: %d\n\n", summary.InProgress, summary.Failed)
	} else {
		w.printf("In Progress: %d \nCompleted: %d \nFailed: %d \nTotal: %d\n\n",
			summary.InProgress, summary.Completed, summary.Failed, summary.Total)
	}
	return nil
}

func (w *Workflow) search(ctx context.Context, req QueryRequest) ([]string, error) {
	statement := chdb.BuildSearchQuery(req.Key, req.Database, req.Table, req.Prefix)
	result, err := w.client.Execute(ctx, statement, chdb.FormatStructured)
	if err != nil {
		return nil, err
	}
	matches := lo.FilterMap(result.Rows, func(row chdb.Row, _ int) (string, bool) {
		value, ok := row[req.Key].(string)
		return value, ok
	})
	return matches, nil
}

func (w *Workflow) delete(ctx context.Context, req QueryRequest) error {
	statement := chdb.BuildDeleteQuery(req.Key, req.Database, req.Table, req.Prefix)
	_, err := w.client.Execute(ctx, statement, chdb.FormatRaw)
	return err
}

func (w *Workflow) forceDelete(ctx context.Context, req QueryRequest) {
	metadata := fmt.Sprintf("source=%s.%s key=%s, prefix=%s", req.Database, req.Table, req.Key, req.Prefix)
	if err := w.delete(ctx, req); err != nil {
		log.Errorf("force delete failed: %s", err)
		w.printf("%s\n", color.RedString("%s [%s]", err, metadata))
	} else {
		w.printf("%s %s\n", metadata, color.GreenString("- OK"))
	}
	w.printf("%s\n", grey("Started a mutation for delete match(%s, '^%s') in %s.%s",
		req.Key, req.Prefix, req.Database, req.Table))
}

func (w *Workflow) printf(format string, args ...interface{}) {
	fmt.Fprintf(w.opts.Out, format, args...)
}
