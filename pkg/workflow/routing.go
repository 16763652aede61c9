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
	"context"
	"strings"

	"github.com/promptwire/promptwire/pkg/errors"
)

// Category maps one classification label to the workflow that handles it.
type Category struct {
	// Name is the label the categorization model is asked to produce.
	Name string `yaml:"name"`

	// Description tells the model when to pick this category.
	Description string `yaml:"description"`

	// Workflow names the Definition to run for this category.
	Workflow string `yaml:"workflow"`
}

// Router resolves a categorization node's output to a category. This is the
// engine's only data-dependent control-flow decision; everything else runs
// in fixed node order.
type Router struct {
	categories      []Category
	defaultCategory string
	maxRetries      int
}

// NewRouter builds a router over a closed category set. defaultCategory
// must name one of the categories; it is the fallback when the model's
// output matches nothing after the retries are exhausted. maxRetries < 0
// selects the default of one retry.
func NewRouter(categories []Category, defaultCategory string, maxRetries int) (*Router, error) {
	if len(categories) == 0 {
		return nil, &errors.ValidationError{
			Field:   "categories",
			Message: "router needs at least one category",
		}
	}

	found := false
	for _, c := range categories {
		if c.Name == "" {
			return nil, &errors.ValidationError{
				Field:   "categories",
				Message: "category with empty name",
			}
		}
		if strings.EqualFold(c.Name, defaultCategory) {
			found = true
		}
	}
	if !found {
		return nil, &errors.ValidationError{
			Field:      "defaultCategory",
			Message:    "default category " + defaultCategory + " is not in the category set",
			Suggestion: "name one of the configured categories as the default",
		}
	}

	if maxRetries < 0 {
		maxRetries = 1
	}

	return &Router{
		categories:      categories,
		defaultCategory: defaultCategory,
		maxRetries:      maxRetries,
	}, nil
}

// RepromptFunc re-asks the categorization model for a label, used when the
// first output matched no category.
type RepromptFunc func(ctx context.Context) (string, error)

// Route matches output against the category set: trimmed, case-normalized
// exact match. On no match it re-prompts up to the configured retry count,
// then falls back to the default category. A reprompt error falls through
// to the default rather than failing the run; classification has a safe
// fallback by construction.
func (r *Router) Route(ctx context.Context, output string, reprompt RepromptFunc) (Category, error) {
	if cat, ok := r.match(output); ok {
		return cat, nil
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if reprompt == nil {
			break
		}
		if err := ctx.Err(); err != nil {
			return Category{}, err
		}

		retried, err := reprompt(ctx)
		if err != nil {
			break
		}
		if cat, ok := r.match(retried); ok {
			return cat, nil
		}
	}

	cat, _ := r.match(r.defaultCategory)
	return cat, nil
}

// match performs the case-normalized exact comparison.
func (r *Router) match(output string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(output))
	for _, c := range r.categories {
		if strings.ToLower(c.Name) == normalized {
			return c, true
		}
	}
	return Category{}, false
}

// ApplyVariables publishes the category metadata placeholders into a run so
// categorization prompts can enumerate the choices.
func (r *Router) ApplyVariables(run *Run) {
	var described, names []string
	for _, c := range r.categories {
		described = append(described, "- "+c.Name+": "+c.Description)
		names = append(names, "- "+c.Name)
	}
	run.SetVariable("category_colon_descriptions_newline_bulletpoint", strings.Join(described, "\n"))
	run.SetVariable("categoryNameBulletpoints", strings.Join(names, "\n"))
}

// WorkflowFor returns the workflow name for a category label, falling back
// to the default category's workflow on no match.
func (r *Router) WorkflowFor(label string) string {
	if cat, ok := r.match(label); ok {
		return cat.Workflow
	}
	cat, _ := r.match(r.defaultCategory)
	return cat.Workflow
}
