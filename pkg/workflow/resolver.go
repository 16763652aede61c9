// Copyright 2026 The Promptwire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import (
	"regexp"
	"strconv"
)

// placeholderPattern is the complete placeholder grammar: agent output and
// input references, last-N turn windows, and the fixed context names. One
// compiled pattern, named groups; anything else in braces is literal text.
//
// This is deliberately a scanner over a finite grammar, not a template
// engine: prompts are natural language and routinely contain braces that
// must survive untouched.
var placeholderPattern = regexp.MustCompile(
	`\{(?:` +
		`agent(?P<idx>\d+)(?P<dir>Output|Input)` +
		`|chat_user_prompt_last_(?P<lastn>\d+)` +
		`|(?P<fixed>chat_system_prompt|category_colon_descriptions_newline_bulletpoint|categoryNameBulletpoints)` +
		`)\}`,
)

var (
	idxGroup   = placeholderPattern.SubexpIndex("idx")
	dirGroup   = placeholderPattern.SubexpIndex("dir")
	lastnGroup = placeholderPattern.SubexpIndex("lastn")
	fixedGroup = placeholderPattern.SubexpIndex("fixed")
)

// Resolve substitutes every recognized placeholder in template with its
// current value from the run. Resolution is single-pass and non-recursive:
// substituted values are never re-scanned, so model-generated text
// containing placeholder syntax cannot trigger further substitution.
// Recognized placeholders with no bound value, and unrecognized
// brace expressions, pass through verbatim.
func Resolve(template string, run *Run) string {
	if template == "" {
		return ""
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)

		switch {
		case groups[idxGroup] != "":
			name := "agent" + groups[idxGroup] + groups[dirGroup]
			if v, ok := run.Variable(name); ok {
				return v
			}
			return match

		case groups[lastnGroup] != "":
			n, err := strconv.Atoi(groups[lastnGroup])
			if err != nil {
				return match
			}
			return run.lastTurnsPrompt(n)

		case groups[fixedGroup] == "chat_system_prompt":
			return run.systemPrompt()

		default:
			if v, ok := run.Variable(groups[fixedGroup]); ok {
				return v
			}
			return match
		}
	})
}
