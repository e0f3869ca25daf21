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

package dsl

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts `when: [a, b]` (bare sequence, implicit "all"),
// `when: {all: [...]}`, `when: {any: [...]}`, and `when: {event_type: ...,
// all: [...]}`, desugaring each to the same WhenSpec.
func (w *WhenSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var all []string
		if err := node.Decode(&all); err != nil {
			return fmt.Errorf("dsl: decoding bare when-sequence: %w", err)
		}
		w.All = all
		return nil
	case yaml.MappingNode:
		type alias WhenSpec
		var a alias
		if err := node.Decode(&a); err != nil {
			return fmt.Errorf("dsl: decoding when-mapping: %w", err)
		}
		*w = WhenSpec(a)
		return nil
	case yaml.ScalarNode:
		// a single bare expression string, e.g. pipeline-level `when: "..."`.
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		w.All = []string{s}
		return nil
	default:
		return fmt.Errorf("dsl: unsupported when node kind %v", node.Kind)
	}
}

// UnmarshalYAML accepts either a bare rule-id string or an inline rule
// mapping (see RuleRef doc comment).
func (r *RuleRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var id string
		if err := node.Decode(&id); err != nil {
			return err
		}
		r.ID = id
		return nil
	case yaml.MappingNode:
		// `{id: ..., params: {...}}` is a parameterized reference; a mapping
		// carrying a `when` block is an inline rule definition.
		var probe struct {
			ID     string         `yaml:"id"`
			Params map[string]any `yaml:"params"`
			When   *yaml.Node     `yaml:"when"`
		}
		if err := node.Decode(&probe); err != nil {
			return fmt.Errorf("dsl: decoding rule reference: %w", err)
		}
		if probe.When == nil {
			if probe.ID == "" {
				return fmt.Errorf("dsl: rule reference is missing an id")
			}
			r.ID = probe.ID
			r.Params = probe.Params
			return nil
		}
		var rd RuleDoc
		if err := node.Decode(&rd); err != nil {
			return fmt.Errorf("dsl: decoding inline rule: %w", err)
		}
		r.Inline = &rd
		return nil
	default:
		return fmt.Errorf("dsl: unsupported rule-ref node kind %v", node.Kind)
	}
}
