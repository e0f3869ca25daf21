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

package datasource

import (
	"context"
	"fmt"
)

// Registry is the set of named Adapters a repository generation resolved
// from its `configs/datasources/*.yaml` documents, shared
// (pooled) across requests and swapped only on reload.
type Registry struct {
	adapters map[string]Adapter
}

// Build opens one Adapter per Config. A single failure tears down every
// adapter already opened and returns the error -- repository load is
// all-or-nothing.
func Build(configs []Config) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(configs))}
	for _, cfg := range configs {
		a, err := open(cfg)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("datasource %q: %w", cfg.Name, err)
		}
		r.adapters[cfg.Name] = a
	}
	return r, nil
}

// NewFromAdapters wraps already-open adapters into a Registry, for
// callers that construct adapters themselves (embedded setups, mocks).
func NewFromAdapters(adapters map[string]Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for name, a := range adapters {
		m[name] = a
	}
	return &Registry{adapters: m}
}

func open(cfg Config) (Adapter, error) {
	switch cfg.Kind {
	case KindSQL:
		return NewSQLAdapter(cfg.Name, cfg)
	case KindOLAP:
		return NewOLAPAdapter(cfg.Name, cfg)
	case KindKV:
		return NewKVAdapter(cfg.Name, cfg)
	default:
		return nil, fmt.Errorf("unknown datasource kind %q", cfg.Kind)
	}
}

// Get returns the named adapter, or false if no such datasource was
// configured -- callers surface this as xerr.DatasourceError{Unavailable}.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// HealthCheck runs every configured datasource's health_check and
// reports each result, keyed by name (true means healthy).
func (r *Registry) HealthCheck(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(r.adapters))
	for name, a := range r.adapters {
		out[name] = a.HealthCheck(ctx)
	}
	return out
}

// Close shuts down every adapter, collecting but not stopping on
// individual close errors -- reload must be able to retire an old
// generation even if one connection is already gone.
func (r *Registry) Close() error {
	var firstErr error
	for _, a := range r.adapters {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
