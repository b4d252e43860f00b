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

package chdb

import (
	"fmt"
	"time"
)

// Statement builders interpolate their arguments verbatim, with no escaping
// or sanitization. The tool is operated against trusted inputs only; a
// prefix containing a quote will break (or subvert) the statement.

// BuildSearchQuery returns the statement that lists distinct values of the
// key column matching the anchored prefix regex.
func BuildSearchQuery(key, database, table, prefix string) string {
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s.%s WHERE match(%s, '^%s')",
		key, database, table, key, prefix)
}

// BuildDeleteQuery returns the ALTER TABLE DELETE statement for the same
// match. Executing it starts an asynchronous mutation on the server.
func BuildDeleteQuery(key, database, table, prefix string) string {
	return fmt.Sprintf("ALTER TABLE %s.%s DELETE WHERE match(%s, '^%s')",
		database, table, key, prefix)
}

// BuildMutationStatusQuery returns the statement that fetches the table's
// mutation rows created on the given day.
func BuildMutationStatusQuery(database, table string, day time.Time) string {
	return fmt.Sprintf("SELECT * FROM system.mutations WHERE database='%s' AND table='%s' AND toDate(create_time) = '%s'",
		database, table, day.Format("2006-01-02"))
}
