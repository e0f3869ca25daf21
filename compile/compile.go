// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package compile lowers parsed dsl.Document values into the immutable
// ir.Artifacts table: name resolution, extends flattening,
// type/regex checks, constant folding, short-circuit-preserving condition
// reordering, and dead clause elimination.
package compile

import (
	"fmt"
	"sort"

	"github.com/corint-run/corint/dsl"
	"github.com/corint-run/corint/ir"
)

// Compiler accumulates dsl documents (typically discovered by package repo
// walking a filesystem layout) before a single Compile call
// lowers them all together, so cross-document references (ruleset ->
// rule, pipeline -> ruleset, expression -> feature/list) can be resolved.
type Compiler struct {
	rules     map[string]dsl.RuleDoc
	rulesets  map[string]dsl.RulesetDoc
	pipelines map[string]dsl.PipelineDoc
	features  map[string]dsl.FeatureDoc
	lists     map[string]dsl.ListDoc
	registry  *dsl.RegistryDoc
}

func NewCompiler() *Compiler {
	return &Compiler{
		rules:     map[string]dsl.RuleDoc{},
		rulesets:  map[string]dsl.RulesetDoc{},
		pipelines: map[string]dsl.PipelineDoc{},
		features:  map[string]dsl.FeatureDoc{},
		lists:     map[string]dsl.ListDoc{},
	}
}

// Add indexes a parsed document by its variant and id, erroring on
// duplicate ids within a variant (a repository-load conflict).
func (c *Compiler) Add(d dsl.Document) error {
	switch {
	case d.Rule != nil:
		if _, dup := c.rules[d.Rule.ID]; dup {
			return fmt.Errorf("compile: duplicate rule id %q (%s)", d.Rule.ID, d.Source)
		}
		c.rules[d.Rule.ID] = *d.Rule
	case d.Ruleset != nil:
		if _, dup := c.rulesets[d.Ruleset.ID]; dup {
			return fmt.Errorf("compile: duplicate ruleset id %q (%s)", d.Ruleset.ID, d.Source)
		}
		c.rulesets[d.Ruleset.ID] = *d.Ruleset
	case d.Pipeline != nil:
		if _, dup := c.pipelines[d.Pipeline.ID]; dup {
			return fmt.Errorf("compile: duplicate pipeline id %q (%s)", d.Pipeline.ID, d.Source)
		}
		c.pipelines[d.Pipeline.ID] = *d.Pipeline
	case d.Feature != nil:
		if _, dup := c.features[d.Feature.Name]; dup {
			return fmt.Errorf("compile: duplicate feature name %q (%s)", d.Feature.Name, d.Source)
		}
		c.features[d.Feature.Name] = *d.Feature
	case d.List != nil:
		if _, dup := c.lists[d.List.ID]; dup {
			return fmt.Errorf("compile: duplicate list id %q (%s)", d.List.ID, d.Source)
		}
		c.lists[d.List.ID] = *d.List
	case d.Registry != nil:
		if c.registry != nil {
			return fmt.Errorf("compile: duplicate registry document (%s)", d.Source)
		}
		c.registry = d.Registry
	}
	return nil
}

// Compile runs every pass and returns the resulting
// Artifacts table, or the first compile error encountered. Compile never
// mutates its receiver's input maps' values in place for rules other than
// the resolved copies it builds -- safe to call repeatedly (e.g. for
// config validation) before committing a generation.
func (c *Compiler) Compile() (*ir.Artifacts, error) {
	lists, err := compileLists(c.lists)
	if err != nil {
		return nil, err
	}
	features, err := compileFeatures(c.features, lists)
	if err != nil {
		return nil, err
	}

	rc := &rulesetCompiler{
		compiler: c,
		lists:    lists,
		features: features,
		resolved: map[string]*ir.Ruleset{},
	}
	rulesets, err := rc.compileAll()
	if err != nil {
		return nil, err
	}

	pipelines, err := compilePipelines(c.pipelines, rulesets, lists, features)
	if err != nil {
		return nil, err
	}

	registry, defaultPL, err := compileRegistry(c.registry, pipelines)
	if err != nil {
		return nil, err
	}

	return &ir.Artifacts{
		Rulesets:  rulesets,
		Pipelines: pipelines,
		Features:  features,
		Lists:     lists,
		Registry:  registry,
		DefaultPL: defaultPL,
	}, nil
}

// sortedKeys is used throughout compile to make iteration order (and
// hence compile error ordering) deterministic across runs.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
