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

// Package cli assembles the promptwire command tree.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version information (injected via ldflags at build time).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// configDirDefault is used when neither --config nor the environment
// variable names a configuration directory.
const configDirDefault = "."

// NewRootCommand creates the root cobra command for promptwire.
func NewRootCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "promptwire",
		Short: "Promptwire - workflow middleware for LLM backends",
		Long: `Promptwire sits between a chat client and one or more LLM backends.
It exposes an OpenAI-compatible completion endpoint and answers each
request by running a configured workflow: an ordered pipeline of nodes
whose outputs feed later prompts, optionally routed by a categorization
step across heterogeneous backend protocols.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Accept flags regardless of casing so --Config and --config agree.
	cmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ToLower(name))
	})

	cmd.PersistentFlags().StringVarP(&configDir, "config", "c", "",
		"Configuration directory (default: $PROMPTWIRE_CONFIG or the working directory)")

	cmd.AddCommand(newServeCommand(&configDir))
	cmd.AddCommand(newRunCommand(&configDir))
	cmd.AddCommand(newValidateCommand(&configDir))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// resolveConfigDir applies the flag > environment > default precedence.
func resolveConfigDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if dir := os.Getenv("PROMPTWIRE_CONFIG"); dir != "" {
		return dir
	}
	return configDirDefault
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promptwire %s (commit: %s, built: %s)\n",
				version, commit, buildDate)
		},
	}
}
