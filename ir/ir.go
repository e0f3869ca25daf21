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

// Package ir holds the compiled, immutable artifacts produced by package
// compile from the DSL documents: Rule, Ruleset, Pipeline, Feature, List,
// and Registry, plus the Artifacts table that groups one repository
// generation. Rather than lowering expressions
// to a flat bytecode stream, conditions remain ast.Expression trees walked
// directly by package interp: compile resolves and validates, interp walks
// what compile resolved, and the observable contract is the same either
// way.
package ir

import (
	"time"

	"github.com/corint-run/corint/ast"
)

// Combinator is the aggregation rule for a WhenBlock's condition list.
type Combinator string

const (
	All Combinator = "all"
	Any Combinator = "any"
)

// WhenBlock gates a Rule's firing or a Pipeline's applicability.
type WhenBlock struct {
	EventType  string
	Conditions []ast.Expression
	Combinator Combinator
}

// FeatureErrorPolicy controls how a FeatureError surfaces to the
// interpreter.
type FeatureErrorPolicy string

const (
	OnErrorDefaultValue FeatureErrorPolicy = "default_value"
	OnErrorSkipRule     FeatureErrorPolicy = "skip_rule"
	OnErrorFailRequest  FeatureErrorPolicy = "fail_request"
)

// Rule is the compiled form of a rule document.
type Rule struct {
	ID          string
	Name        string
	Description string
	When        WhenBlock
	Score       int
}

// ConclusionClause maps accumulated ruleset state to a signal.
type ConclusionClause struct {
	Condition      ast.Expression // nil means Default
	Default        bool
	Signal         string
	Actions        []string
	ReasonTemplate string
}

// Ruleset is the compiled, extends-flattened form of a ruleset document.
// Extends is resolved at compile time; the IR never carries
// an unresolved Extends reference.
type Ruleset struct {
	ID         string
	Rules      []*Rule
	Conclusion []ConclusionClause
}

// StepKind discriminates the Pipeline step union.
type StepKind string

const (
	StepRuleset  StepKind = "ruleset"
	StepRouter   StepKind = "router"
	StepExternal StepKind = "external_call"
)

// Route is one RouterStep branch.
type Route struct {
	When ast.Expression
	Next string
}

// ExternalCallConfig carries the provider name and opaque per-provider
// configuration for an ExternalCallStep.
type ExternalCallConfig struct {
	Provider string // "llm" | "service"
	Params   map[string]any
}

// Step is one node of a Pipeline's step graph.
type Step struct {
	ID   string
	Kind StepKind
	Next string // "end" terminates; used by Ruleset and External steps

	RulesetRef string // StepRuleset
	Routes     []Route
	Default    string // StepRouter fallback
	External   ExternalCallConfig
}

// DecisionClause maps aggregated ruleset_results to the pipeline's final
// action.
type DecisionClause struct {
	Condition ast.Expression
	Default   bool
	Action    string
	Reason    string
	Actions   []string
}

// Pipeline is the compiled form of a pipeline document.
type Pipeline struct {
	ID       string
	Name     string
	Entry    string
	When     ast.Expression // nil means always-applicable
	Steps    map[string]*Step
	Decision []DecisionClause
}

// WindowUnit enumerates the units a Feature's window may be expressed in.
type WindowUnit string

const (
	UnitSeconds WindowUnit = "seconds"
	UnitMinutes WindowUnit = "minutes"
	UnitHours   WindowUnit = "hours"
	UnitDays    WindowUnit = "days"
)

func (u WindowUnit) Seconds() float64 {
	switch u {
	case UnitMinutes:
		return 60
	case UnitHours:
		return 3600
	case UnitDays:
		return 86400
	default:
		return 1
	}
}

// Window is the time range predicate a Feature's query may apply.
type Window struct {
	Value float64
	Unit  WindowUnit
}

func (w Window) Duration() time.Duration {
	return time.Duration(w.Value * w.Unit.Seconds() * float64(time.Second))
}

// FeatureFilter is one `(field, op, value)` predicate applied to a query.
type FeatureFilter struct {
	Field string
	Op    string
	Value any
}

// FeatureOperator enumerates the supported feature aggregations.
type FeatureOperator string

const (
	OpCount         FeatureOperator = "count"
	OpSum           FeatureOperator = "sum"
	OpMax           FeatureOperator = "max"
	OpMin           FeatureOperator = "min"
	OpAvg           FeatureOperator = "avg"
	OpCountDistinct FeatureOperator = "count_distinct"
	OpLookup        FeatureOperator = "lookup"
	OpCustomSQL     FeatureOperator = "custom_sql"
)

// Feature is the compiled form of a feature document.
type Feature struct {
	Name           string
	Operator       FeatureOperator
	Datasource     string
	Entity         string
	Dimension      string
	DimensionValue string // template, e.g. "{event.user_id}"
	Field          string
	Window         *Window
	Filters        []FeatureFilter
	CustomSQL      string
	OnError        FeatureErrorPolicy
	DefaultValue   any
}

// ListBackend enumerates the list storage backends.
type ListBackend string

const (
	ListMemory ListBackend = "memory"
	ListFile   ListBackend = "file"
	ListSQL    ListBackend = "sql"
)

// ListEntry is one inline memory-backend entry.
type ListEntry struct {
	Value     string
	ExpiresAt *time.Time
}

// List is the compiled form of a list document.
type List struct {
	ID         string
	Backend    ListBackend
	Path       string      // ListFile source path
	Datasource string      // ListSQL datasource name
	Table      string      // ListSQL table name, default "corint_list_entries"
	Entries    []ListEntry // ListMemory inline entries
}

// RegistryEntry is one first-match routing rule.
type RegistryEntry struct {
	PipelineID string
	When       ast.Expression
}

// Artifacts groups one compiled repository generation: every Ruleset,
// Pipeline, Feature, List, and the Registry, keyed by id. This whole
// struct is swapped atomically on reload.
type Artifacts struct {
	Generation int64
	Rulesets   map[string]*Ruleset
	Pipelines  map[string]*Pipeline
	Features   map[string]*Feature
	Lists      map[string]*List
	Registry   []RegistryEntry
	DefaultPL  string // "default" pipeline id, if present
}
