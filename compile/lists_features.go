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

package compile

import (
	"fmt"

	"github.com/corint-run/corint/dsl"
	"github.com/corint-run/corint/ir"
)

func compileLists(docs map[string]dsl.ListDoc) (map[string]*ir.List, error) {
	out := map[string]*ir.List{}
	for _, id := range sortedKeys(docs) {
		d := docs[id]
		l := &ir.List{
			ID:         d.ID,
			Backend:    ir.ListBackend(d.Backend),
			Path:       d.Path,
			Datasource: d.Datasource,
			Table:      d.Table,
		}
		switch l.Backend {
		case ir.ListMemory, ir.ListFile, ir.ListSQL:
		default:
			return nil, fmt.Errorf("compile: list %q has unknown backend %q", d.ID, d.Backend)
		}
		if l.Backend == ir.ListFile && l.Path == "" {
			return nil, fmt.Errorf("compile: file list %q is missing path", d.ID)
		}
		if l.Backend == ir.ListSQL {
			if l.Datasource == "" {
				return nil, fmt.Errorf("compile: sql list %q is missing datasource", d.ID)
			}
			if l.Table == "" {
				l.Table = "corint_list_entries"
			}
		}
		if l.Backend == ir.ListMemory {
			for _, e := range d.Entries {
				l.Entries = append(l.Entries, ir.ListEntry{Value: e.Value, ExpiresAt: e.ExpiresAt})
			}
		}
		out[id] = l
	}
	return out, nil
}

func compileFeatures(docs map[string]dsl.FeatureDoc, lists map[string]*ir.List) (map[string]*ir.Feature, error) {
	out := map[string]*ir.Feature{}
	for _, name := range sortedKeys(docs) {
		d := docs[name]
		f := &ir.Feature{
			Name:           d.Name,
			Operator:       ir.FeatureOperator(d.Operator),
			Datasource:     d.Datasource,
			Entity:         d.Entity,
			Dimension:      d.Dimension,
			DimensionValue: d.DimensionValue,
			Field:          d.Field,
			CustomSQL:      d.CustomSQL,
			OnError:        ir.FeatureErrorPolicy(d.OnError),
			DefaultValue:   d.DefaultValue,
		}
		switch f.Operator {
		case ir.OpCount, ir.OpSum, ir.OpMax, ir.OpMin, ir.OpAvg, ir.OpCountDistinct, ir.OpLookup, ir.OpCustomSQL:
		default:
			return nil, fmt.Errorf("compile: feature %q has unknown operator %q", d.Name, d.Operator)
		}
		if f.Operator == ir.OpCustomSQL && f.CustomSQL == "" {
			return nil, fmt.Errorf("compile: feature %q uses custom_sql but has no query", d.Name)
		}
		switch f.OnError {
		case "", ir.OnErrorDefaultValue, ir.OnErrorSkipRule, ir.OnErrorFailRequest:
		default:
			return nil, fmt.Errorf("compile: feature %q has unknown on_error policy %q", d.Name, d.OnError)
		}
		if f.OnError == "" {
			f.OnError = ir.OnErrorDefaultValue
		}
		if d.Window != nil {
			unit := ir.WindowUnit(d.Window.Unit)
			switch unit {
			case ir.UnitSeconds, ir.UnitMinutes, ir.UnitHours, ir.UnitDays:
			default:
				return nil, fmt.Errorf("compile: feature %q has unknown window unit %q", d.Name, d.Window.Unit)
			}
			f.Window = &ir.Window{Value: d.Window.Value, Unit: unit}
		}
		for _, filt := range d.Filters {
			f.Filters = append(f.Filters, ir.FeatureFilter{Field: filt.Field, Op: filt.Op, Value: filt.Value})
		}
		out[name] = f
	}
	return out, nil
}
