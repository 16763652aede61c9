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
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptwire/promptwire/internal/config"
)

func newValidateCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration directory",
		Long: `Validate loads the configuration directory the way serve would —
config.yaml, endpoints.yaml, and every workflow under workflows/ — and
reports what it found. It fails on the first problem: unknown YAML keys,
invalid endpoint descriptors, workflow nodes that reference missing
endpoints or later node outputs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveConfigDir(*configDir)

			bundle, err := config.Load(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration in %s is valid\n", dir)
			fmt.Fprintf(out, "  endpoints: %s\n", joinSorted(keysOf(bundle.Endpoints)))
			fmt.Fprintf(out, "  workflows: %s\n", joinSorted(keysOf(bundle.Workflows)))
			fmt.Fprintf(out, "  default workflow: %s\n", bundle.Config.DefaultWorkflow)
			if routing := bundle.Config.Routing.Workflow; routing != "" {
				fmt.Fprintf(out, "  routing: %s (%d categories, default %q)\n",
					routing, len(bundle.Config.Routing.Categories), bundle.Config.Routing.DefaultCategory)
			}
			return nil
		},
	}
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func joinSorted(keys []string) string {
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
