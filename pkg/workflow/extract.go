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
	"strings"
)

// ExtractTag returns the interior of the first <tag>...</tag> match in
// text, with outer whitespace trimmed and inner markup preserved. Matching
// is case-sensitive and non-greedy: nested occurrences of the same or other
// tags inside the interior are returned verbatim. Absence, case mismatch,
// or an unsafely escaping tag name all yield "", which downstream nodes
// treat as "nothing found", not as an error.
func ExtractTag(text, tag string) string {
	if text == "" || tag == "" {
		return ""
	}

	escaped := regexp.QuoteMeta(tag)
	pattern, err := regexp.Compile(`(?s)<` + escaped + `>(.*?)</` + escaped + `>`)
	if err != nil {
		return ""
	}

	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}
