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

// Package feature implements the `resolve(name, context) -> Value |
// FeatureError` contract: dimension-value template
// rendering, query construction per operator, dispatch to a datasource
// adapter, and per-ExecutionContext memoization.
package feature

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/corint-run/corint/datasource"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// Resolver resolves named features against one compiled repository
// generation's Feature definitions and Datasource registry.
type Resolver struct {
	features    map[string]*ir.Feature
	datasources *datasource.Registry
}

func NewResolver(features map[string]*ir.Feature, datasources *datasource.Registry) *Resolver {
	return &Resolver{features: features, datasources: datasources}
}

// Resolve returns the memoized value for name or computes, caches, and
// returns it. cache is the request-scoped `event_data["features"]` memo
// table; callers own its lifetime, and a fresh map per request keeps the
// cache strictly request-scoped.
func (r *Resolver) Resolve(ctx context.Context, name string, event *value.Object, cache map[string]value.Value) (value.Value, error) {
	if v, ok := cache[name]; ok {
		return v, nil
	}

	f, ok := r.features[name]
	if !ok {
		return value.Null(), xerr.ErrFeature(xerr.FeatureUnknown, name, nil)
	}

	v, err := r.resolveUncached(ctx, f, event)
	if err != nil {
		switch f.OnError {
		case ir.OnErrorDefaultValue:
			dv := implicitDefault(f.Operator)
			if f.DefaultValue != nil {
				if conv, convErr := value.FromAny(f.DefaultValue); convErr == nil {
					dv = conv
				}
			}
			cache[name] = dv
			return dv, nil
		default:
			// skip_rule and fail_request both propagate the error; package
			// interp distinguishes them by xerr.FeatureError.Kind-independent
			// policy carried on the Feature definition, not the error itself.
			return value.Null(), err
		}
	}

	cache[name] = v
	return v, nil
}

// implicitDefault is the missing-value fallback when a degraded feature
// has no configured default_value: zero for the aggregate operators,
// Null for lookups.
func implicitDefault(op ir.FeatureOperator) value.Value {
	switch op {
	case ir.OpLookup, ir.OpCustomSQL:
		return value.Null()
	default:
		return value.Number(0)
	}
}

// QueryMeta renders the redacted query f would issue for event, for
// trace entries: template text and parameter count, never bound values.
func (r *Resolver) QueryMeta(name string, event *value.Object) (map[string]any, bool) {
	f, ok := r.features[name]
	if !ok {
		return nil, false
	}
	q := buildQuery(f, renderTemplate(f.DimensionValue, event))
	meta := q.Redacted()
	meta["datasource"] = f.Datasource
	return meta, true
}

// OnErrorPolicy exposes the feature's configured on_error policy so
// package interp can decide whether a propagated error skips the
// containing rule or fails the whole request.
func (r *Resolver) OnErrorPolicy(name string) ir.FeatureErrorPolicy {
	if f, ok := r.features[name]; ok {
		return f.OnError
	}
	return ir.OnErrorDefaultValue
}

func (r *Resolver) resolveUncached(ctx context.Context, f *ir.Feature, event *value.Object) (value.Value, error) {
	dimValue := renderTemplate(f.DimensionValue, event)

	ds, ok := r.datasources.Get(f.Datasource)
	if !ok {
		return value.Null(), xerr.AsFeatureError(f.Name, xerr.ErrDatasource(xerr.DatasourceUnavailable, f.Datasource, fmt.Errorf("no such datasource")))
	}

	q := buildQuery(f, dimValue)
	res, err := ds.Execute(ctx, q)
	if err != nil {
		return value.Null(), xerr.AsFeatureError(f.Name, err)
	}
	return res.Scalar(), nil
}

// buildQuery constructs the parameterized query for f's operator.
// SQL/OLAP datasources receive SQLText+Args; KV
// datasources (lookup only) receive Op+Key.
func buildQuery(f *ir.Feature, dimValue string) datasource.Query {
	if f.Operator == ir.OpLookup && isKVLikeEntity(f) {
		return datasource.Query{Op: "GET", Key: f.Entity + ":" + dimValue}
	}

	var sb strings.Builder
	args := []any{dimValue}

	switch f.Operator {
	case ir.OpCount:
		sb.WriteString("SELECT COUNT(*) FROM " + f.Entity + " WHERE " + f.Dimension + " = ?")
	case ir.OpSum:
		sb.WriteString("SELECT SUM(" + f.Field + ") FROM " + f.Entity + " WHERE " + f.Dimension + " = ?")
	case ir.OpMax:
		sb.WriteString("SELECT MAX(" + f.Field + ") FROM " + f.Entity + " WHERE " + f.Dimension + " = ?")
	case ir.OpMin:
		sb.WriteString("SELECT MIN(" + f.Field + ") FROM " + f.Entity + " WHERE " + f.Dimension + " = ?")
	case ir.OpAvg:
		sb.WriteString("SELECT AVG(" + f.Field + ") FROM " + f.Entity + " WHERE " + f.Dimension + " = ?")
	case ir.OpCountDistinct:
		sb.WriteString("SELECT COUNT(DISTINCT " + f.Field + ") FROM " + f.Entity + " WHERE " + f.Dimension + " = ?")
	case ir.OpLookup:
		sb.WriteString("SELECT " + f.Field + " FROM " + f.Entity + " WHERE " + f.Dimension + " = ?")
	case ir.OpCustomSQL:
		sb.Reset()
		sb.WriteString(f.CustomSQL)
	}

	if f.Window != nil {
		sb.WriteString(" AND event_timestamp >= ?")
		args = append(args, time.Now().Add(-f.Window.Duration()).UTC())
	}
	for _, filt := range f.Filters {
		sb.WriteString(fmt.Sprintf(" AND %s %s ?", filt.Field, filt.Op))
		args = append(args, filt.Value)
	}

	return datasource.Query{SQLText: sb.String(), Args: args}
}

// isKVLikeEntity treats a lookup feature as KV-shaped when its entity
// names a KV datasource's key prefix rather than a relational table: that
// is, when it has neither a field nor custom SQL. The datasource's kind is
// not consulted.
func isKVLikeEntity(f *ir.Feature) bool {
	return f.Field == "" && f.CustomSQL == ""
}

// renderTemplate substitutes every `{event.<path>}` occurrence in tmpl
// with the CoerceString of the corresponding field in event. An unresolvable path renders as an empty string rather than
// failing the whole template, matching the "lookup degrades to Null"
// philosophy package interp's FieldAccess evaluator applies elsewhere.
func renderTemplate(tmpl string, event *value.Object) string {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.IndexByte(tmpl[i:], '{')
		if start < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		start += i
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		end += start
		out.WriteString(tmpl[i:start])

		ref := tmpl[start+1 : end]
		out.WriteString(resolveTemplateRef(ref, event))
		i = end + 1
	}
	return out.String()
}

func resolveTemplateRef(ref string, event *value.Object) string {
	const prefix = "event."
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	path := strings.Split(strings.TrimPrefix(ref, prefix), ".")

	cur, ok := value.FromObject(event), true
	for _, seg := range path {
		if !ok {
			return ""
		}
		obj, isObj := cur.AsObject()
		if !isObj {
			return ""
		}
		cur, ok = obj.Get(seg)
	}
	if !ok {
		return ""
	}
	return cur.CoerceString()
}
