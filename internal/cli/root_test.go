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

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/pkg/errors"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3", "abc1234", "2026-08-31")

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "promptwire 1.2.3")
	assert.Contains(t, out.String(), "abc1234")
}

func TestResolveConfigDir(t *testing.T) {
	t.Setenv("PROMPTWIRE_CONFIG", "")
	assert.Equal(t, ".", resolveConfigDir(""))

	t.Setenv("PROMPTWIRE_CONFIG", "/etc/promptwire")
	assert.Equal(t, "/etc/promptwire", resolveConfigDir(""))

	// Flag beats environment.
	assert.Equal(t, "/tmp/conf", resolveConfigDir("/tmp/conf"))
}

func TestPromptFromArgs(t *testing.T) {
	prompt, err := promptFromArgs([]string{"hello"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "hello", prompt)

	prompt, err = promptFromArgs(nil, strings.NewReader("  piped question\n"))
	require.NoError(t, err)
	assert.Equal(t, "piped question", prompt)

	_, err = promptFromArgs(nil, strings.NewReader("   \n"))
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prompt", verr.Field)
}
