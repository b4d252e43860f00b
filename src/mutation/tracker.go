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

// Package mutation summarizes rows of the system.mutations table and
// blocks until a table's mutations resolve.
package mutation

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/akimrx/ch-metrics-cleaner/src/chdb"
)

// Record is an immutable snapshot of one system.mutations row. A fresh set
// is fetched on every poll; records are never updated in place.
type Record struct {
	PartsToDo        int64
	IsDone           bool
	LatestFailedPart string
}

// Summary is the aggregate over one table/day's records, recomputed from
// scratch on every poll. completed + inProgress <= total is expected but
// not enforced; the server's bookkeeping is trusted.
type Summary struct {
	InProgress int
	Completed  int
	Failed     int
	Total      int
}

// Resolved reports whether polling should stop: nothing in progress, or at
// least one mutation failed.
func (s Summary) Resolved() bool {
	return s.InProgress == 0 || s.Failed > 0
}

// RecordsFromRows converts parsed system.mutations rows into Records.
// ClickHouse HTTP JSON output quotes 64-bit integers, so parts_to_do may
// arrive as either "3" or 3 depending on server settings.
func RecordsFromRows(rows []chdb.Row) []Record {
	return lo.Map(rows, func(row chdb.Row, _ int) Record {
		return Record{
			PartsToDo:        asInt64(row["parts_to_do"]),
			IsDone:           asInt64(row["is_done"]) == 1,
			LatestFailedPart: asString(row["latest_failed_part"]),
		}
	})
}

// Summarize aggregates records into a Summary. Pure function, no I/O,
// order-invariant.
func Summarize(records []Record) Summary {
	return Summary{
		InProgress: lo.CountBy(records, func(r Record) bool { return r.PartsToDo > 0 }),
		Completed:  lo.CountBy(records, func(r Record) bool { return r.IsDone }),
		Failed:     lo.CountBy(records, func(r Record) bool { return r.LatestFailedPart != "" }),
		Total:      len(records),
	}
}

// FetchFunc returns the current mutation records for one table.
type FetchFunc func() ([]Record, error)

// AwaitCompletion polls fetch at a fixed interval until the summary is
// resolved and returns it. There is deliberately no timeout, no
// cancellation and no backoff; interrupting the process is the only way to
// give up. A fetch error propagates immediately without a retry.
func AwaitCompletion(fetch FetchFunc, interval time.Duration) (Summary, error) {
	for {
		records, err := fetch()
		if err != nil {
			return Summary{}, err
		}
		summary := Summarize(records)
		if summary.Resolved() {
			return summary, nil
		}
		time.Sleep(interval)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case float64:
		return int64(t)
	case json.Number:
		n, _ := t.Int64()
		return n
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
