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

// Package dsl models the YAML document grammar: Rule, Ruleset, Pipeline,
// Feature, List, and Registry documents, parsed with gopkg.in/yaml.v3.
// Expression fields are kept as raw strings
// here; package compile is responsible for parsing them into ast.Expression
// and validating references.
package dsl

import "time"

// WhenSpec is the raw, not-yet-parsed form of a rule's when block. It
// accepts either a bare sequence (`when: [a, b]`, defaulting to "all") or
// an explicit `{all: [...]}` / `{any: [...]}` mapping -- see unmarshal.go.
type WhenSpec struct {
	EventType  string   `yaml:"event_type,omitempty"`
	All        []string `yaml:"all,omitempty"`
	Any        []string `yaml:"any,omitempty"`
}

// Combinator reports which of All/Any is populated, defaulting to "all"
// when neither was set explicitly.
func (w WhenSpec) Combinator() string {
	if len(w.Any) > 0 && len(w.All) == 0 {
		return "any"
	}
	return "all"
}

func (w WhenSpec) Conditions() []string {
	if w.Combinator() == "any" {
		return w.Any
	}
	return w.All
}

// RuleDoc is one Rule document.
type RuleDoc struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	When        WhenSpec `yaml:"when"`
	Score       int      `yaml:"score"`
}

// ConclusionClauseDoc is one raw ConclusionClause.
type ConclusionClauseDoc struct {
	Condition string   `yaml:"condition,omitempty"`
	Default   bool     `yaml:"default,omitempty"`
	Signal    string   `yaml:"signal"`
	Actions   []string `yaml:"actions,omitempty"`
	Reason    string   `yaml:"reason,omitempty"`
}

// RuleRef is either a bare rule-id string reference, an id + params
// mapping (the referenced rule's `params.<name>` accesses are replaced by
// the given constants when the ruleset is compiled), or an inline rule
// definition. Small rulesets inline their one-off rules; shared rules
// live in library/rules/*.yaml and are referenced by id.
type RuleRef struct {
	ID     string
	Params map[string]any
	Inline *RuleDoc
}

// RulesetDoc is one Ruleset document.
type RulesetDoc struct {
	ID         string                 `yaml:"id"`
	Extends    string                 `yaml:"extends,omitempty"`
	Rules      []RuleRef              `yaml:"rules"`
	Conclusion []ConclusionClauseDoc  `yaml:"conclusion"`
}

// RouteDoc is one RouterStep branch.
type RouteDoc struct {
	When string `yaml:"when"`
	Next string `yaml:"next"`
}

// StepDoc is the raw form of the pipeline Step union, discriminated by Type.
type StepDoc struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"` // "ruleset" | "router" | "external_call"
	Next string `yaml:"next,omitempty"`

	RulesetRef string `yaml:"ruleset_ref,omitempty"`

	Routes  []RouteDoc `yaml:"routes,omitempty"`
	Default string     `yaml:"default,omitempty"`

	Provider string         `yaml:"provider,omitempty"`
	Config   map[string]any `yaml:"config,omitempty"`
}

// DecisionClauseDoc is one pipeline-level DecisionClause.
type DecisionClauseDoc struct {
	Condition string   `yaml:"condition,omitempty"`
	Default   bool     `yaml:"default,omitempty"`
	Action    string   `yaml:"action"`
	Reason    string   `yaml:"reason,omitempty"`
	Actions   []string `yaml:"actions,omitempty"`
}

// PipelineDoc is one Pipeline document.
type PipelineDoc struct {
	ID       string              `yaml:"id"`
	Name     string              `yaml:"name,omitempty"`
	Entry    string              `yaml:"entry"`
	When     string              `yaml:"when,omitempty"`
	Steps    []StepDoc           `yaml:"steps"`
	Decision []DecisionClauseDoc `yaml:"decision,omitempty"`
}

// WindowDoc is the raw form of a feature's window block.
type WindowDoc struct {
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"` // seconds|minutes|hours|days
}

// FilterDoc is one `(field, op, value)` predicate.
type FilterDoc struct {
	Field string `yaml:"field"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value"`
}

// FeatureDoc is one Feature document.
type FeatureDoc struct {
	Name           string      `yaml:"name"`
	Operator       string      `yaml:"operator"`
	Datasource     string      `yaml:"datasource"`
	Entity         string      `yaml:"entity,omitempty"`
	Dimension      string      `yaml:"dimension,omitempty"`
	DimensionValue string      `yaml:"dimension_value,omitempty"`
	Field          string      `yaml:"field,omitempty"`
	Window         *WindowDoc  `yaml:"window,omitempty"`
	Filters        []FilterDoc `yaml:"filters,omitempty"`
	CustomSQL      string      `yaml:"custom_sql,omitempty"`
	OnError        string      `yaml:"on_error,omitempty"` // default_value|skip_rule|fail_request
	DefaultValue   any         `yaml:"default_value,omitempty"`
}

// ListEntryDoc is one inline memory/file list entry.
type ListEntryDoc struct {
	Value     string     `yaml:"value"`
	ExpiresAt *time.Time `yaml:"expires_at,omitempty"`
}

// ListDoc is one List document.
type ListDoc struct {
	ID         string         `yaml:"id"`
	Backend    string         `yaml:"backend"` // memory|file|sql
	Path       string         `yaml:"path,omitempty"`
	Datasource string         `yaml:"datasource,omitempty"`
	Table      string         `yaml:"table,omitempty"`
	Entries    []ListEntryDoc `yaml:"entries,omitempty"`
}

// RegistryEntryDoc is one first-match routing rule.
type RegistryEntryDoc struct {
	PipelineID string `yaml:"pipeline_id"`
	When       string `yaml:"when"`
}

// RegistryDoc is the single Registry document.
type RegistryDoc struct {
	Entries []RegistryEntryDoc `yaml:"entries"`
	Default string             `yaml:"default,omitempty"`
}

// Document is one top-level YAML document, keyed by which of its fields
// is non-nil (exactly one, enforced by ParseAll).
type Document struct {
	Rule     *RuleDoc     `yaml:"rule,omitempty"`
	Ruleset  *RulesetDoc  `yaml:"ruleset,omitempty"`
	Pipeline *PipelineDoc `yaml:"pipeline,omitempty"`
	Feature  *FeatureDoc  `yaml:"feature,omitempty"`
	List     *ListDoc     `yaml:"list,omitempty"`
	Registry *RegistryDoc `yaml:"registry,omitempty"`

	Source string `yaml:"-"` // file path, for error messages
}
