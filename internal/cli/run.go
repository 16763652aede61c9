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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/promptwire/promptwire/internal/config"
	"github.com/promptwire/promptwire/internal/server"
	"github.com/promptwire/promptwire/pkg/backend"
	"github.com/promptwire/promptwire/pkg/errors"
	"github.com/promptwire/promptwire/pkg/workflow"
)

func newRunCommand(configDir *string) *cobra.Command {
	var (
		workflowName string
		discussionID string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Execute one workflow turn without the server",
		Long: `Run executes a single user prompt through the configured pipeline and
prints the final output. The prompt is taken from the arguments, or from
stdin when no argument is given. Routing applies exactly as it would for
a served request unless --workflow pins a specific workflow.`,
		Example: `  # Route a prompt through the configured pipeline
  promptwire run "explain goroutine leaks"

  # Pin a workflow and keep conversation memory across invocations
  cat question.txt | promptwire run --workflow research --discussion docs-42`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := promptFromArgs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runOnce(cmd, resolveConfigDir(*configDir), workflowName, discussionID, prompt)
		},
	}

	cmd.Flags().StringVarP(&workflowName, "workflow", "w", "", "Workflow to run (default: routing or defaultWorkflow)")
	cmd.Flags().StringVarP(&discussionID, "discussion", "d", "", "Discussion id for conversation memory")

	return cmd
}

func promptFromArgs(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "reading prompt from stdin")
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", &errors.ValidationError{
			Field:      "prompt",
			Message:    "no prompt given",
			Suggestion: "pass the prompt as an argument or pipe it on stdin",
		}
	}
	return prompt, nil
}

func runOnce(cmd *cobra.Command, configDir, workflowName, discussionID, prompt string) error {
	logger := slog.Default()

	bundle, err := config.Load(configDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildCollaborators(ctx, bundle, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	rt, err := server.NewRuntime(bundle, deps)
	if err != nil {
		return err
	}

	turns := []backend.Message{{Role: backend.RoleUser, Content: prompt}}

	var output string
	if workflowName != "" {
		def, ok := bundle.Workflows[workflowName]
		if !ok {
			return &errors.NotFoundError{Resource: "workflow", ID: workflowName}
		}
		run := workflow.NewRun(turns, workflow.WithDiscussionID(discussionID))
		output, err = rt.Executor().Run(ctx, def, run)
	} else {
		output, err = rt.Execute(ctx, turns, discussionID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
