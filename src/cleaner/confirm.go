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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/akimrx/ch-metrics-cleaner/src/utils"
)

// Confirmer answers a yes/no question put to the operator. The workflow
// depends on this interface so tests can script the responses.
type Confirmer interface {
	Confirm(prompt string) bool
}

// acceptedAnswers is the fixed set of affirmative replies, matched
// case-insensitively. Anything else counts as a refusal.
var acceptedAnswers = []string{"y", "yes", "да", "д"}

// StdinConfirmer reads one line from its input stream per question.
type StdinConfirmer struct {
	reader *bufio.Reader
}

func NewStdinConfirmer(r io.Reader) *StdinConfirmer {
	return &StdinConfirmer{reader: bufio.NewReader(r)}
}

func (c *StdinConfirmer) Confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := utils.Readline(c.reader)
	if err != nil {
		return false
	}
	return lo.Contains(acceptedAnswers, strings.ToLower(strings.TrimSpace(line)))
}
