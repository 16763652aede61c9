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

package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/promptwire/promptwire/pkg/backend"
	"github.com/promptwire/promptwire/pkg/errors"
	"github.com/promptwire/promptwire/pkg/workflow"
)

// Bundle is one fully-loaded, validated configuration directory.
type Bundle struct {
	Config    Config
	Endpoints map[string]*backend.Descriptor
	Workflows map[string]*workflow.Definition
}

// Load reads a configuration directory:
//
//	config.yaml      main configuration
//	endpoints.yaml   list of backend descriptors
//	workflows/*.yaml one workflow definition per file
//
// Load fails fast on the first invalid file; a partially-valid bundle is
// never returned.
func Load(dir string) (*Bundle, error) {
	bundle := &Bundle{
		Endpoints: make(map[string]*backend.Descriptor),
		Workflows: make(map[string]*workflow.Definition),
	}

	if err := loadYAML(filepath.Join(dir, "config.yaml"), &bundle.Config); err != nil {
		return nil, err
	}
	bundle.Config.applyDefaults()

	if err := loadEndpoints(filepath.Join(dir, "endpoints.yaml"), bundle); err != nil {
		return nil, err
	}
	if err := loadWorkflows(filepath.Join(dir, "workflows"), bundle); err != nil {
		return nil, err
	}
	if err := bundle.validate(); err != nil {
		return nil, err
	}

	return bundle, nil
}

// loadYAML strictly decodes one YAML file into out. Unknown fields are
// errors: a typoed key silently ignored is how misconfigurations hide.
func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

func loadEndpoints(path string, bundle *Bundle) error {
	var descriptors []backend.Descriptor
	if err := loadYAML(path, &descriptors); err != nil {
		return err
	}

	for i := range descriptors {
		d := &descriptors[i]
		if err := d.Validate(); err != nil {
			return errors.Wrapf(err, "endpoint %q", d.Name)
		}
		if _, exists := bundle.Endpoints[d.Name]; exists {
			return &errors.ValidationError{
				Field:   "endpoints",
				Message: "duplicate endpoint name: " + d.Name,
			}
		}
		bundle.Endpoints[d.Name] = d
	}
	return nil
}

func loadWorkflows(dir string, bundle *Bundle) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "reading workflow directory %s", dir)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return errors.Wrapf(err, "reading workflow %s", name)
		}

		def, err := workflow.Parse(data)
		if err != nil {
			return errors.Wrapf(err, "workflow %s", name)
		}
		if def.Name == "" {
			def.Name = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		if _, exists := bundle.Workflows[def.Name]; exists {
			return &errors.ValidationError{
				Field:   "workflows",
				Message: "duplicate workflow name: " + def.Name,
			}
		}
		bundle.Workflows[def.Name] = def
	}

	if len(bundle.Workflows) == 0 {
		return &errors.ValidationError{
			Field:      "workflows",
			Message:    "no workflow definitions found",
			Suggestion: "add at least one .yaml file under " + dir,
		}
	}
	return nil
}

// validate checks cross-file references after everything has loaded.
func (b *Bundle) validate() error {
	if b.Config.DefaultWorkflow == "" {
		return &errors.ConfigError{
			Key:    "defaultWorkflow",
			Reason: "a default workflow is required",
		}
	}
	if err := b.requireWorkflow(b.Config.DefaultWorkflow, "defaultWorkflow"); err != nil {
		return err
	}

	// Every endpoint a workflow node names must be configured.
	for name, def := range b.Workflows {
		for i := range def.Nodes {
			for _, endpoint := range nodeEndpoints(&def.Nodes[i]) {
				if _, ok := b.Endpoints[endpoint]; !ok {
					return &errors.ConfigError{
						Key:    "workflows." + name,
						Reason: "node references unknown endpoint " + endpoint,
					}
				}
			}
		}
	}

	if b.Config.Routing.Workflow != "" {
		if err := b.requireWorkflow(b.Config.Routing.Workflow, "routing.workflow"); err != nil {
			return err
		}
		for _, cat := range b.Config.Routing.Categories {
			if err := b.requireWorkflow(cat.Workflow, "routing.categories."+cat.Name); err != nil {
				return err
			}
		}
	}

	if endpoint := b.Config.Memory.SummaryEndpoint; endpoint != "" {
		if _, ok := b.Endpoints[endpoint]; !ok {
			return &errors.ConfigError{
				Key:    "memory.summaryEndpoint",
				Reason: "unknown endpoint " + endpoint,
			}
		}
	}

	return nil
}

func (b *Bundle) requireWorkflow(name, key string) error {
	if _, ok := b.Workflows[name]; !ok {
		return &errors.ConfigError{
			Key:    key,
			Reason: "unknown workflow " + name,
		}
	}
	return nil
}

func nodeEndpoints(node *workflow.NodeSpec) []string {
	if len(node.Endpoints) > 0 {
		return node.Endpoints
	}
	if node.EndpointName != "" {
		return []string{node.EndpointName}
	}
	return nil
}
