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

// Package datasource implements the polymorphic `execute(query) ->
// QueryResult` / `health_check() -> bool` capability: a relational SQL
// adapter and an OLAP/columnar adapter, both pooled with bounded retry on
// connection failure, and a KV adapter over one embedded bbolt handle,
// which does not retry.
package datasource

import (
	"context"
	"time"

	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// Kind discriminates the three adapter variants.
type Kind string

const (
	KindSQL  Kind = "sql"
	KindOLAP Kind = "olap"
	KindKV   Kind = "kv"
)

// Config is one `configs/datasources/*.yaml` entry, read once
// at repository load.
type Config struct {
	Name         string
	Kind         Kind
	DSN          string // connection string / HTTP endpoint / file path
	MaxPoolSize  int32
	QueryTimeout time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
	RetryFactor  float64
	RetryTries   int
}

// withDefaults fills in the retry/timeout defaults: 3 attempts, 50ms
// base, 2x factor, 1s cap, and a 5s query timeout.
func (c Config) withDefaults() Config {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.RetryTries <= 0 {
		c.RetryTries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 50 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = time.Second
	}
	if c.RetryFactor <= 0 {
		c.RetryFactor = 2
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 8
	}
	return c
}

// Row is one result row, field name to Value -- already coerced to
// CORINT's universal datum so package feature never touches a raw driver
// type.
type Row map[string]value.Value

// QueryResult is the adapter-agnostic response to Execute.
type QueryResult struct {
	Rows []Row
}

// Scalar returns a column of the first row, or Null if the result set is
// empty. Row is a map, so with more than one column which one is returned
// is not defined; the single-column aggregate and lookup results features
// read have exactly one.
func (r *QueryResult) Scalar() value.Value {
	if r == nil || len(r.Rows) == 0 {
		return value.Null()
	}
	for _, v := range r.Rows[0] {
		return v
	}
	return value.Null()
}

// Query is the adapter-agnostic request. SQL/OLAP adapters use SQLText +
// Args (positionally bound, never string-interpolated); the KV adapter
// uses Op + Key.
type Query struct {
	SQLText string
	Args    []any

	Op  string // "GET" | "HGETALL" | "SMEMBERS"
	Key string
}

// Adapter is the polymorphic datasource capability: execute +
// health_check, shared (pooled) across requests.
type Adapter interface {
	Execute(ctx context.Context, q Query) (*QueryResult, error)
	HealthCheck(ctx context.Context) bool
	Close() error
}

// withTimeout bounds a single query to cfg.QueryTimeout, surfacing xerr.DatasourceError{Timeout}
// when the context deadline is what stopped the call.
func withTimeout(ctx context.Context, cfg Config, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return xerr.ErrDatasource(xerr.DatasourceTimeout, name, err)
	}
	return err
}
