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

package list

import (
	"fmt"

	"github.com/corint-run/corint/datasource"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/perch"
)

// Registry holds one resolved List per ir.List the compiled repository
// generation defines, keyed by id -- the table package interp consults
// whenever an ast.ListRef is evaluated.
type Registry struct {
	lists map[string]List
}

// sqlCacheCapacity bounds the shared SQL-list lookup cache; list lookups
// are small booleans, so a generous capacity costs little memory.
const sqlCacheCapacity = 4096

// Build resolves every ir.List into a runtime List, opening file lists
// eagerly and wiring SQL
// lists to their named datasource adapter. A single SQL-list cache is
// shared across all SQL lists in a generation.
func Build(defs map[string]*ir.List, datasources *datasource.Registry) (*Registry, error) {
	r := &Registry{lists: make(map[string]List, len(defs))}
	var sqlCache *perch.Perch[bool]

	for id, def := range defs {
		switch def.Backend {
		case ir.ListMemory:
			r.lists[id] = NewMemory(def)

		case ir.ListFile:
			l, err := NewFile(def)
			if err != nil {
				return nil, fmt.Errorf("list %q: %w", id, err)
			}
			r.lists[id] = l

		case ir.ListSQL:
			ds, ok := datasources.Get(def.Datasource)
			if !ok {
				return nil, fmt.Errorf("list %q: unresolved datasource %q", id, def.Datasource)
			}
			if sqlCache == nil {
				sqlCache = perch.New[bool](sqlCacheCapacity)
			}
			r.lists[id] = NewSQL(def, ds, sqlCache)

		default:
			return nil, fmt.Errorf("list %q: unknown backend %q", id, def.Backend)
		}
	}
	return r, nil
}

// Get returns the named list, or false if the repository defines no list
// with that id.
func (r *Registry) Get(id string) (List, bool) {
	l, ok := r.lists[id]
	return l, ok
}

// All exposes the full id -> List table for the interpreter.
func (r *Registry) All() map[string]List {
	return r.lists
}
