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
	"bytes"
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// kvBucket is the single top-level bucket every KV-backed feature and list
// lookup reads and writes, keyed "<entity>:<dimension_value>" -> either a
// scalar (GET), a field-map (HGETALL), or a newline-joined member set
// (SMEMBERS).
var kvBucket = []byte("corint")

// KVAdapter is the embedded key-value adapter, backed by bbolt.
// It exists for single-node deployments and test fixtures where running a
// separate Redis-shaped service is unwarranted; cfg.DSN is a filesystem
// path to the bbolt file.
type KVAdapter struct {
	name string
	cfg  Config
	db   *bbolt.DB
}

// NewKVAdapter opens (creating if absent) the bbolt file at cfg.DSN and
// ensures kvBucket exists.
func NewKVAdapter(name string, cfg Config) (*KVAdapter, error) {
	cfg = cfg.withDefaults()
	db, err := bbolt.Open(cfg.DSN, 0o600, &bbolt.Options{Timeout: cfg.QueryTimeout})
	if err != nil {
		return nil, xerr.ErrDatasource(xerr.DatasourceUnavailable, name, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, xerr.ErrDatasource(xerr.DatasourceUnavailable, name, err)
	}
	return &KVAdapter{name: name, cfg: cfg, db: db}, nil
}

var _ Adapter = (*KVAdapter)(nil)

func (a *KVAdapter) Execute(ctx context.Context, q Query) (*QueryResult, error) {
	var result *QueryResult
	err := withTimeout(ctx, a.cfg, a.name, func(ctx context.Context) error {
		return a.db.View(func(tx *bbolt.Tx) error {
			b := tx.Bucket(kvBucket)
			r, err := execKV(b, q)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		var de xerr.DatasourceError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, xerr.ErrDatasource(xerr.DatasourceQueryFailed, a.name, err)
	}
	return result, nil
}

func execKV(b *bbolt.Bucket, q Query) (*QueryResult, error) {
	switch q.Op {
	case "GET":
		v := b.Get([]byte(q.Key))
		if v == nil {
			return &QueryResult{}, nil
		}
		return &QueryResult{Rows: []Row{{q.Key: value.String(string(v))}}}, nil

	case "HGETALL":
		prefix := []byte(q.Key + ":")
		row := Row{}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			field := string(k[len(prefix):])
			row[field] = value.String(string(v))
		}
		if len(row) == 0 {
			return &QueryResult{}, nil
		}
		return &QueryResult{Rows: []Row{row}}, nil

	case "SMEMBERS":
		v := b.Get([]byte(q.Key))
		if v == nil {
			return &QueryResult{}, nil
		}
		var arr []value.Value
		for _, m := range strings.Split(strings.TrimRight(string(v), "\n"), "\n") {
			arr = append(arr, value.String(m))
		}
		return &QueryResult{Rows: []Row{{q.Key: value.Array(arr)}}}, nil

	default:
		return nil, errUnsupportedOp(q.Op)
	}
}

type unsupportedOpError string

func (e unsupportedOpError) Error() string { return "kv: unsupported op " + string(e) }

func errUnsupportedOp(op string) error { return unsupportedOpError(op) }

func (a *KVAdapter) HealthCheck(ctx context.Context) bool {
	err := a.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(kvBucket) == nil {
			return errBucketMissing
		}
		return nil
	})
	return err == nil
}

var errBucketMissing = errors.New("kv: bucket missing")

func (a *KVAdapter) Close() error { return a.db.Close() }
