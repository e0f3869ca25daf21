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

// Package repo loads a rule repository from its filesystem layout into a
// compiled, immutable Generation, and swaps generations atomically on
// reload. A load is all-or-nothing: every document parses and compiles,
// and every datasource opens, before the new generation becomes visible;
// any failure leaves the prior generation serving.
package repo

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/corint-run/corint/datasource"
	"github.com/corint-run/corint/extcall"
	"github.com/corint-run/corint/feature"
	"github.com/corint-run/corint/interp"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/list"
	"github.com/corint-run/corint/registry"
)

// Options customize what a Repository wires into each generation.
type Options struct {
	// Generator backs "llm" external-call steps; nil leaves the provider
	// unregistered and such steps failing.
	Generator extcall.Generator

	// MaxVMsPerScript bounds each service script's VM pool.
	MaxVMsPerScript int32

	Logger *slog.Logger
}

// Generation is one compiled repository generation: the artifact table
// plus every runtime table derived from it. Immutable once built;
// requests capture a generation at start and hold it throughout.
type Generation struct {
	ID          int64
	Manifest    *Manifest
	Artifacts   *ir.Artifacts
	Datasources *datasource.Registry
	Lists       *list.Registry
	Resolver    *feature.Resolver
	Router      *registry.Router
	Interp      *interp.Interpreter
}

// Repository owns the active generation and the reload lifecycle.
type Repository struct {
	root string
	opts Options
	log  *slog.Logger

	active   atomic.Pointer[Generation]
	reloadMu sync.Mutex
	nextGen  int64

	// retired generations are closed on Close; their datasource pools
	// stay open until then so in-flight requests drain safely.
	retiredMu sync.Mutex
	retired   []*Generation
}

// Open loads the repository at root and activates its first generation.
func Open(ctx context.Context, root string, opts Options) (*Repository, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := &Repository{root: root, opts: opts, log: log}
	if _, err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Active returns the generation serving requests right now. Callers keep
// the returned pointer for the full request rather than re-reading it.
func (r *Repository) Active() *Generation {
	return r.active.Load()
}

// Reload rebuilds from disk and atomically swaps the active generation,
// returning the new generation id. Concurrent reloads serialize; a failed
// reload leaves the active generation untouched.
func (r *Repository) Reload(ctx context.Context) (int64, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	gen, err := r.build(ctx)
	if err != nil {
		return 0, err
	}

	old := r.active.Swap(gen)
	if old != nil {
		r.retiredMu.Lock()
		r.retired = append(r.retired, old)
		r.retiredMu.Unlock()
	}
	r.log.Info("repository generation activated", "generation", gen.ID, "pack", gen.Manifest.Name,
		"pipelines", len(gen.Artifacts.Pipelines), "rulesets", len(gen.Artifacts.Rulesets),
		"features", len(gen.Artifacts.Features), "lists", len(gen.Artifacts.Lists))
	return gen.ID, nil
}

func (r *Repository) build(ctx context.Context) (*Generation, error) {
	manifest, err := LoadManifest(r.root)
	if err != nil {
		return nil, err
	}

	docs, dsConfigs, err := loadSources(ctx, manifest.Location)
	if err != nil {
		return nil, err
	}

	arts, err := compileAll(docs, manifest.Location)
	if err != nil {
		return nil, err
	}

	datasources, err := datasource.Build(dsConfigs)
	if err != nil {
		return nil, err
	}

	lists, err := list.Build(arts.Lists, datasources)
	if err != nil {
		datasources.Close()
		return nil, err
	}

	resolver := feature.NewResolver(arts.Features, datasources)

	dispatcher := extcall.NewDispatcher()
	dispatcher.Register("service", extcall.NewServiceProvider(manifest.Location, r.opts.MaxVMsPerScript))
	if r.opts.Generator != nil {
		dispatcher.Register("llm", extcall.NewLLMProvider(r.opts.Generator))
	}

	r.nextGen++
	gen := &Generation{
		ID:          r.nextGen,
		Manifest:    manifest,
		Artifacts:   arts,
		Datasources: datasources,
		Lists:       lists,
		Resolver:    resolver,
		Router:      registry.New(arts),
		Interp: &interp.Interpreter{
			Rulesets: arts.Rulesets,
			Resolver: resolver,
			Lists:    lists.All(),
			External: dispatcher,
		},
	}
	gen.Artifacts.Generation = gen.ID
	return gen, nil
}

// Close shuts down the active generation and every retired one.
func (r *Repository) Close() error {
	var firstErr error
	if gen := r.active.Swap(nil); gen != nil {
		firstErr = gen.Datasources.Close()
	}
	r.retiredMu.Lock()
	defer r.retiredMu.Unlock()
	for _, gen := range r.retired {
		if err := gen.Datasources.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.retired = nil
	return firstErr
}
