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

// Package extcall implements the provider capability an external_call
// pipeline step delegates to. Two providers ship with the engine: "llm",
// a prompt/completion contract against a pluggable text generator, and
// "service", a sandboxed script executed in a pooled JavaScript VM. The
// interpreter binds whatever a provider returns under
// `variables.<step_id>` and moves on; providers never touch engine state.
package extcall

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/corint-run/corint/value"
)

// Provider handles one external_call step invocation. params is the
// step's raw `config` mapping from the pipeline document.
type Provider interface {
	Invoke(ctx context.Context, params map[string]any, event *value.Object) (value.Value, error)
}

// Dispatcher routes an external_call step to its named provider. It
// satisfies the interpreter's ExternalCaller seam.
type Dispatcher struct {
	providers map[string]Provider
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{providers: map[string]Provider{}}
}

// Register binds name to p, replacing any previous binding.
func (d *Dispatcher) Register(name string, p Provider) *Dispatcher {
	d.providers[name] = p
	return d
}

func (d *Dispatcher) Call(ctx context.Context, provider string, params map[string]any, event *value.Object) (value.Value, error) {
	p, ok := d.providers[provider]
	if !ok {
		return value.Value{}, errors.Errorf("extcall: no provider registered for %q", provider)
	}
	return p.Invoke(ctx, params, event)
}

// eventToMap flattens the event into plain Go values for handoff to a
// provider runtime (a JS VM, an HTTP body). The JSON round trip keeps the
// conversion on the same code path as every other serialization of a
// Value.
func eventToMap(event *value.Object) (map[string]any, error) {
	b, err := event.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
