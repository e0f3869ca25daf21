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

// Package list implements the `in list.<id>` membership test:
// a memory backend (fully loaded at repository-load time), a file backend
// (newline-delimited strings, same load-time semantics), and a SQL backend
// (a per-lookup query against a relational table, optionally cached).
// Every backend honors expiration -- entries with no expiry metadata are
// permanent.
package list

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/corint-run/corint/datasource"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/perch"
)

// List is the runtime-queryable form of an ir.List: `Contains` answers the
// membership test a `list.<id>` FieldAccess lowers to at compile time
// (package ast's ListRef).
type List interface {
	Contains(ctx context.Context, value string) (bool, error)
}

// entry pairs a memory/file-backend value with its optional expiry.
type entry struct {
	expiresAt *time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expiresAt == nil || e.expiresAt.After(now)
}

// staticList backs both the memory and file backends -- both are fully
// resident, hash-lookup sets built once at repository load.
type staticList struct {
	entries map[string]entry
}

func (l *staticList) Contains(_ context.Context, value string) (bool, error) {
	e, ok := l.entries[value]
	if !ok {
		return false, nil
	}
	return e.live(time.Now()), nil
}

// NewMemory builds a staticList from an ir.List's inline entries.
func NewMemory(def *ir.List) *staticList {
	s := &staticList{entries: make(map[string]entry, len(def.Entries))}
	for _, e := range def.Entries {
		s.entries[e.Value] = entry{expiresAt: e.ExpiresAt}
	}
	return s
}

// NewFile builds a staticList by reading def.Path as newline-delimited
// strings. File-backed entries carry no expiry metadata --
// they are permanent until the file is reloaded.
func NewFile(def *ir.List) (*staticList, error) {
	f, err := os.Open(def.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := &staticList{entries: map[string]entry{}}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.entries[line] = entry{}
	}
	return s, scanner.Err()
}

// sqlList is the SQL backend: a per-lookup query against the relational
// table `(list_id, value, expires_at)`, with an optional short-TTL cache.
type sqlList struct {
	id    string
	table string
	ds    datasource.Adapter
	cache *perch.Perch[bool]
	ttl   time.Duration
}

// CacheTTL is the default short TTL applied to SQL list lookups when a
// cache is attached.
const CacheTTL = 5 * time.Second

// NewSQL builds a sqlList against the named datasource adapter. cache may
// be nil to disable caching entirely.
func NewSQL(def *ir.List, ds datasource.Adapter, cache *perch.Perch[bool]) *sqlList {
	return &sqlList{id: def.ID, table: def.Table, ds: ds, cache: cache, ttl: CacheTTL}
}

func (l *sqlList) Contains(ctx context.Context, value string) (bool, error) {
	key := l.id + "\x00" + value
	if l.cache != nil {
		return l.cache.Get(ctx, key, l.ttl, func(ctx context.Context, _ string) (bool, error) {
			return l.query(ctx, value)
		})
	}
	return l.query(ctx, value)
}

func (l *sqlList) query(ctx context.Context, value string) (bool, error) {
	q := datasource.Query{
		SQLText: "SELECT 1 FROM " + l.table + " WHERE list_id = ? AND value = ? AND (expires_at IS NULL OR expires_at > ?) LIMIT 1",
		Args:    []any{l.id, value, time.Now().UTC()},
	}
	res, err := l.ds.Execute(ctx, q)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

var _ List = (*sqlList)(nil)
var _ List = (*staticList)(nil)
