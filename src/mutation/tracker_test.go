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

package mutation

import (
	"testing"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akimrx/ch-metrics-cleaner/src/chdb"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		records  []Record
		expected Summary
	}{
		{
			name:     "no records",
			records:  nil,
			expected: Summary{},
		},
		{
			name: "mixed states",
			records: []Record{
				{PartsToDo: 3},
				{PartsToDo: 0, IsDone: true},
				{PartsToDo: 1, LatestFailedPart: "202304_1_1_0"},
				{PartsToDo: 0, IsDone: true},
			},
			expected: Summary{InProgress: 2, Completed: 2, Failed: 1, Total: 4},
		},
		{
			name: "all done",
			records: []Record{
				{IsDone: true},
				{IsDone: true},
			},
			expected: Summary{Completed: 2, Total: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Summarize(tt.records))
		})
	}
}

func TestSummarizeIsOrderInvariant(t *testing.T) {
	records := []Record{
		{PartsToDo: 2},
		{IsDone: true},
		{LatestFailedPart: "202304_5_5_0"},
		{PartsToDo: 1, IsDone: false},
	}
	reversed := make([]Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	assert.Equal(t, Summarize(records), Summarize(reversed))
}

func TestSummaryResolved(t *testing.T) {
	assert.True(t, Summary{}.Resolved())
	assert.True(t, Summary{InProgress: 0, Completed: 3, Total: 3}.Resolved())
	assert.True(t, Summary{InProgress: 2, Failed: 1}.Resolved())
	assert.False(t, Summary{InProgress: 1}.Resolved())
}

func TestRecordsFromRows(t *testing.T) {
	rows := []chdb.Row{
		// 64-bit integers arrive quoted from the HTTP interface.
		{"parts_to_do": "3", "is_done": float64(0), "latest_failed_part": ""},
		{"parts_to_do": "0", "is_done": float64(1), "latest_failed_part": ""},
		{"parts_to_do": float64(1), "is_done": float64(0), "latest_failed_part": "202304_1_1_0"},
	}

	records := RecordsFromRows(rows)
	require.Len(t, records, 3)
	assert.Equal(t, Record{PartsToDo: 3}, records[0])
	assert.Equal(t, Record{PartsToDo: 0, IsDone: true}, records[1])
	assert.Equal(t, Record{PartsToDo: 1, LatestFailedPart: "202304_1_1_0"}, records[2])
}

func TestAwaitCompletionReturnsImmediatelyWhenResolved(t *testing.T) {
	var calls int
	fetch := func() ([]Record, error) {
		calls++
		return []Record{{IsDone: true}}, nil
	}

	start := time.Now()
	summary, err := AwaitCompletion(fetch, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, Summary{Completed: 1, Total: 1}, summary)
	// Resolved on the first fetch means no sleep at all.
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitCompletionPollsUntilDone(t *testing.T) {
	responses := [][]Record{
		{{PartsToDo: 1}},
		{{PartsToDo: 1}},
		{{PartsToDo: 0, IsDone: true}},
	}
	var calls int
	fetch := func() ([]Record, error) {
		records := responses[calls]
		calls++
		return records, nil
	}

	summary, err := AwaitCompletion(fetch, time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, Summary{Completed: 1, Total: 1}, summary)
}

func TestAwaitCompletionStopsOnFailedMutation(t *testing.T) {
	fetch := func() ([]Record, error) {
		return []Record{
			{PartsToDo: 2},
			{PartsToDo: 1, LatestFailedPart: "202304_9_9_0"},
		}, nil
	}

	summary, err := AwaitCompletion(fetch, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Summary{InProgress: 2, Failed: 1, Total: 2}, summary)
}

func TestAwaitCompletionPropagatesFetchErrors(t *testing.T) {
	var calls int
	fetch := func() ([]Record, error) {
		calls++
		return nil, goerrors.Errorf("connection refused")
	}

	_, err := AwaitCompletion(fetch, time.Millisecond)
	require.Error(t, err)
	// Fetch failures are not retried.
	assert.Equal(t, 1, calls)
}
