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
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure-Go relational driver, no cgo

	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// SQLAdapter is the relational adapter: a parameterized SQL
// string plus positional parameter array, a bounded connection pool, and
// exponential-backoff retry on connection failure only, never on a
// query error.
type SQLAdapter struct {
	name string
	cfg  Config
	db   *sql.DB
}

// NewSQLAdapter opens a modernc.org/sqlite pool against cfg.DSN. The same
// adapter shape serves any database/sql driver; sqlite keeps the binary
// cgo-free, so it is what the filesystem-backed fixtures and the
// SQL-backed list backend use.
func NewSQLAdapter(name string, cfg Config) (*SQLAdapter, error) {
	cfg = cfg.withDefaults()
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, xerr.ErrDatasource(xerr.DatasourceUnavailable, name, err)
	}
	db.SetMaxOpenConns(int(cfg.MaxPoolSize))
	db.SetMaxIdleConns(int(cfg.MaxPoolSize))
	return &SQLAdapter{name: name, cfg: cfg, db: db}, nil
}

var _ Adapter = (*SQLAdapter)(nil)

func (a *SQLAdapter) Execute(ctx context.Context, q Query) (*QueryResult, error) {
	conn, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// The query itself runs exactly once: a query error is never retried.
	rows, err := conn.QueryContext(ctx, q.SQLText, q.Args...)
	if err != nil {
		return nil, classifyQueryError(a.name, err)
	}
	defer rows.Close()
	return scanRows(a.name, rows)
}

// acquire checks a connection out of the pool, retrying transient
// connection failures with backoff. Waiting out a saturated pool is not
// retried: every backoff attempt would just queue behind the same busy
// pool, so that path surfaces PoolExhausted immediately.
func (a *SQLAdapter) acquire(ctx context.Context) (*sql.Conn, error) {
	var conn *sql.Conn
	err := withRetry(ctx, a.cfg, func(ctx context.Context) error {
		acquireCtx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
		defer cancel()
		c, err := a.db.Conn(acquireCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, xerr.ErrDatasource(xerr.DatasourceTimeout, a.name, err)
			}
			return nil, xerr.ErrDatasource(xerr.DatasourcePoolExhausted, a.name, err)
		}
		return nil, xerr.ErrDatasource(xerr.DatasourceUnavailable, a.name, err)
	}
	return conn, nil
}

func (a *SQLAdapter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
	defer cancel()
	return a.db.PingContext(ctx) == nil
}

func (a *SQLAdapter) Close() error { return a.db.Close() }

// scanRows converts *sql.Rows into the adapter-agnostic QueryResult,
// coercing every column through value.FromAny so callers never see a
// driver-specific Go type.
func scanRows(name string, rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, xerr.ErrDatasource(xerr.DatasourceQueryFailed, name, err)
	}
	var out QueryResult
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, xerr.ErrDatasource(xerr.DatasourceQueryFailed, name, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			v, err := coerceDriverValue(raw[i])
			if err != nil {
				return nil, xerr.ErrDatasource(xerr.DatasourceQueryFailed, name, err)
			}
			row[c] = v
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, xerr.ErrDatasource(xerr.DatasourceQueryFailed, name, err)
	}
	return &out, nil
}

func coerceDriverValue(raw any) (value.Value, error) {
	switch t := raw.(type) {
	case nil:
		return value.Null(), nil
	case int64:
		return value.Number(float64(t)), nil
	// clickhouse-go scans into the column's exact Go width, so the
	// narrower integer and float kinds show up here too.
	case int:
		return value.Number(float64(t)), nil
	case int8:
		return value.Number(float64(t)), nil
	case int16:
		return value.Number(float64(t)), nil
	case int32:
		return value.Number(float64(t)), nil
	case uint:
		return value.Number(float64(t)), nil
	case uint8:
		return value.Number(float64(t)), nil
	case uint16:
		return value.Number(float64(t)), nil
	case uint32:
		return value.Number(float64(t)), nil
	case uint64:
		return value.Number(float64(t)), nil
	case float32:
		return value.Number(float64(t)), nil
	case float64:
		return value.Number(t), nil
	case []byte:
		return value.String(string(t)), nil
	case string:
		return value.String(t), nil
	case bool:
		return value.Bool(t), nil
	case time.Time:
		return value.String(t.UTC().Format(time.RFC3339)), nil
	default:
		return value.FromAny(t)
	}
}

// withRetry implements the connection-failure policy: exponential
// backoff (default 3 attempts, 50ms base, 2x factor, 1s cap). Only the
// connect/acquire step goes through it; queries run once.
func withRetry(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetryBase
	b.Multiplier = cfg.RetryFactor
	b.MaxInterval = cfg.RetryMax

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(cfg.RetryTries)))
	return err
}

// classifyQueryError maps a single, non-retried query failure: a lapsed
// deadline is a Timeout, everything else is QueryFailed.
func classifyQueryError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return xerr.ErrDatasource(xerr.DatasourceTimeout, name, err)
	}
	return xerr.ErrDatasource(xerr.DatasourceQueryFailed, name, err)
}
