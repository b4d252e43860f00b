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

package errs

import "fmt"

// QueryError reports a failed statement execution against the ClickHouse
// HTTP endpoint: either the request itself failed in transit, or the server
// answered with a non-success status. The statement, status code and
// response body are kept for diagnostics.
type QueryError struct {
	statement  string
	statusCode int
	body       string
	err        error
}

func NewQueryError(statement string, statusCode int, body string, err error) QueryError {
	return QueryError{
		statement:  statement,
		statusCode: statusCode,
		body:       body,
		err:        err,
	}
}

func (e QueryError) Statement() string {
	return e.statement
}

func (e QueryError) StatusCode() int {
	return e.statusCode
}

func (e QueryError) Body() string {
	return e.body
}

func (e QueryError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("An error occurred with the query: %s. Details: %s", e.statement, e.err)
	}
	return fmt.Sprintf("An error occurred with the query: %s. HTTP %d, Details: %s", e.statement, e.statusCode, e.body)
}

func (e QueryError) Unwrap() error {
	return e.err
}
