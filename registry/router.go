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

// Package registry routes an inbound event to a pipeline: entries are
// consulted in declaration order, the first whose gate evaluates truthy
// wins, and an unmatched event falls back to the default pipeline when
// one exists.
package registry

import (
	"context"

	"github.com/corint-run/corint/interp"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/value"
)

// DefaultPipelineID is the pipeline id used as the fallback when the
// registry names no explicit default.
const DefaultPipelineID = "default"

// Router performs first-match pipeline selection over one compiled
// artifact generation. It is immutable and shared across requests.
type Router struct {
	entries   []ir.RegistryEntry
	pipelines map[string]*ir.Pipeline
	defaultPL string
}

func New(arts *ir.Artifacts) *Router {
	defaultPL := arts.DefaultPL
	if defaultPL == "" {
		if _, ok := arts.Pipelines[DefaultPipelineID]; ok {
			defaultPL = DefaultPipelineID
		}
	}
	return &Router{
		entries:   arts.Registry,
		pipelines: arts.Pipelines,
		defaultPL: defaultPL,
	}
}

// Select returns the pipeline for event, or (nil, false) when neither an
// entry nor a default matches -- the caller emits the synthetic pass
// result. Gate expressions see only the event itself: feature and list
// references are not available at routing time, and a gate that fails to
// evaluate simply does not match.
func (r *Router) Select(ctx context.Context, event *value.Object) (*ir.Pipeline, bool) {
	ec := interp.New(ctx, event, nil, nil, nil, false)

	for _, e := range r.entries {
		v, err := interp.Evaluate(ec, e.When)
		if err != nil || !v.Truthy() {
			continue
		}
		if pl, ok := r.pipelines[e.PipelineID]; ok {
			return pl, true
		}
	}

	if pl, ok := r.pipelines[r.defaultPL]; ok && r.defaultPL != "" {
		return pl, true
	}
	return nil, false
}
