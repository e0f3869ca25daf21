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
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"

	"github.com/corint-run/corint/xerr"
)

// OLAPAdapter is the columnar/OLAP adapter, backed by ClickHouse --
// the column store a velocity feature's count/sum/avg aggregation over a
// rolling window is most naturally pushed down into.
type OLAPAdapter struct {
	name string
	cfg  Config
	conn driver.Conn
}

// NewOLAPAdapter dials cfg.DSN as a ClickHouse native-protocol address
// ("host:port"). Pool sizing follows cfg.MaxPoolSize the same way the
// relational adapter sizes database/sql's pool.
func NewOLAPAdapter(name string, cfg Config) (*OLAPAdapter, error) {
	cfg = cfg.withDefaults()
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.DSN},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		MaxOpenConns: int(cfg.MaxPoolSize),
		MaxIdleConns: int(cfg.MaxPoolSize),
	})
	if err != nil {
		return nil, xerr.ErrDatasource(xerr.DatasourceUnavailable, name, err)
	}
	return &OLAPAdapter{name: name, cfg: cfg, conn: conn}, nil
}

var _ Adapter = (*OLAPAdapter)(nil)

func (a *OLAPAdapter) Execute(ctx context.Context, q Query) (*QueryResult, error) {
	// The driver pools connections internally, so the retried "connect"
	// step is a ping; the query itself runs exactly once and its errors
	// are never retried.
	connectErr := withRetry(ctx, a.cfg, func(ctx context.Context) error {
		return a.conn.Ping(ctx)
	})
	if connectErr != nil {
		if errors.Is(connectErr, context.DeadlineExceeded) {
			return nil, xerr.ErrDatasource(xerr.DatasourceTimeout, a.name, connectErr)
		}
		return nil, xerr.ErrDatasource(xerr.DatasourceUnavailable, a.name, connectErr)
	}

	rows, err := a.conn.Query(ctx, q.SQLText, q.Args...)
	if err != nil {
		if errors.Is(err, clickhouse.ErrAcquireConnTimeout) {
			return nil, xerr.ErrDatasource(xerr.DatasourcePoolExhausted, a.name, err)
		}
		return nil, classifyQueryError(a.name, err)
	}
	defer rows.Close()
	return scanCHRows(a.name, rows)
}

func (a *OLAPAdapter) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
	defer cancel()
	return a.conn.Ping(ctx) == nil
}

func (a *OLAPAdapter) Close() error { return a.conn.Close() }

// scanCHRows mirrors scanRows for driver.Rows, whose ScanType-per-column
// shape forces allocating the scan target from the column's reported Go
// type rather than a generic []any -- clickhouse-go does not support the
// database/sql convenience of scanning into *any.
func scanCHRows(name string, rows driver.Rows) (*QueryResult, error) {
	cols := rows.Columns()
	types := rows.ColumnTypes()
	var out QueryResult
	for rows.Next() {
		ptrs := make([]any, len(cols))
		for i, t := range types {
			ptrs[i] = reflectNewScanTarget(t)
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, xerr.ErrDatasource(xerr.DatasourceQueryFailed, name, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			v, err := coerceDriverValue(derefScanTarget(ptrs[i]))
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

// reflectNewScanTarget allocates a zero value of the column's reported Go
// type so driver.Rows.Scan has somewhere to write -- clickhouse-go/v2
// requires a correctly-typed pointer, unlike database/sql's *any.
func reflectNewScanTarget(t driver.ColumnType) any {
	return reflect.New(t.ScanType()).Interface()
}

// derefScanTarget unwraps the pointer reflectNewScanTarget allocated back
// into a plain value so coerceDriverValue can treat it like any other
// driver-returned column.
func derefScanTarget(ptr any) any {
	return reflect.ValueOf(ptr).Elem().Interface()
}
