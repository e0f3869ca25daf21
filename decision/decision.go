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

// Package decision assembles the response envelope around an interpreter
// result: final action, cumulative score, triggered rules, optional
// exposed context, and the serialized, size-bounded trace.
package decision

import (
	"encoding/json"
	"sort"

	"github.com/corint-run/corint/interp"
	"github.com/corint-run/corint/trace"
	"github.com/corint-run/corint/value"
)

// Signal is the optional ruleset-level verdict carried alongside the
// final action.
type Signal struct {
	Type string `json:"type"`
}

// Decision is the `decision` block of a response.
type Decision struct {
	Result         string        `json:"result"`
	Reason         string        `json:"reason"`
	Actions        []string      `json:"actions"`
	Score          int           `json:"score"`
	Signal         *Signal       `json:"signal,omitempty"`
	TriggeredRules []string      `json:"triggered_rules"`
	Context        *value.Object `json:"context,omitempty"`
}

// Response is the full per-request reply.
type Response struct {
	RequestID        string            `json:"request_id"`
	PipelineID       string            `json:"pipeline_id,omitempty"`
	Decision         *Decision         `json:"decision,omitempty"`
	ProcessingTimeMS float64           `json:"processing_time_ms"`
	Trace            json.RawMessage   `json:"trace,omitempty"`
	Metadata         map[string]string `json:"metadata"`
}

// Options shape what the builder exposes on the response.
type Options struct {
	ReturnFeatures bool
	TraceBudget    int // bytes; 0 means trace.DefaultBudgetBytes
}

// FromResult builds the response for one completed pipeline execution.
func FromResult(requestID string, res *interp.Result, opts Options) *Response {
	d := &Decision{
		Result:         res.Action,
		Reason:         res.Reason,
		Actions:        emptyIfNil(res.Actions),
		Score:          res.Score,
		TriggeredRules: emptyIfNil(res.TriggeredRules),
	}
	if res.Signal != "" {
		d.Signal = &Signal{Type: res.Signal}
	}
	if opts.ReturnFeatures && len(res.Features) > 0 {
		features := value.NewObject()
		for _, name := range sortedFeatureNames(res.Features) {
			features.Set(name, res.Features[name])
		}
		ctx := value.NewObject()
		ctx.Set("features", value.FromObject(features))
		d.Context = ctx
	}

	resp := &Response{
		RequestID:  requestID,
		PipelineID: res.PipelineID,
		Decision:   d,
		Metadata:   map[string]string{},
	}
	if res.Trace != nil {
		b, truncated := trace.Budgeted(res.Trace, opts.TraceBudget)
		resp.Trace = b
		if truncated {
			resp.Metadata["trace_truncated"] = "true"
		}
	}
	return resp
}

// Pass builds the synthetic result emitted when no registry entry and no
// default pipeline matched the event.
func Pass(requestID, reason string) *Response {
	return &Response{
		RequestID: requestID,
		Decision: &Decision{
			Result:         "pass",
			Reason:         reason,
			Actions:        []string{},
			TriggeredRules: []string{},
		},
		Metadata: map[string]string{},
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sortedFeatureNames(m map[string]value.Value) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
