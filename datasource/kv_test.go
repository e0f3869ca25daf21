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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.etcd.io/bbolt"
)

type KVAdapterTestSuite struct {
	suite.Suite
	ctx context.Context
	a   *KVAdapter
}

func (s *KVAdapterTestSuite) SetupTest() {
	s.ctx = context.Background()
	path := filepath.Join(s.T().TempDir(), "kv.db")
	a, err := NewKVAdapter("devicekv", Config{Kind: KindKV, DSN: path})
	s.Require().NoError(err)
	s.a = a

	s.Require().NoError(a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if err := b.Put([]byte("device:known"), []byte("true")); err != nil {
			return err
		}
		if err := b.Put([]byte("user:u1:name"), []byte("Ada")); err != nil {
			return err
		}
		if err := b.Put([]byte("user:u1:plan"), []byte("pro")); err != nil {
			return err
		}
		return b.Put([]byte("blocked_ips"), []byte("1.1.1.1\n2.2.2.2\n3.3.3.3"))
	}))
}

func (s *KVAdapterTestSuite) TearDownTest() {
	s.Require().NoError(s.a.Close())
}

func (s *KVAdapterTestSuite) TestGet() {
	res, err := s.a.Execute(s.ctx, Query{Op: "GET", Key: "device:known"})
	s.Require().NoError(err)
	str, ok := res.Scalar().AsString()
	s.True(ok)
	s.Equal("true", str)
}

func (s *KVAdapterTestSuite) TestGetMissingIsEmpty() {
	res, err := s.a.Execute(s.ctx, Query{Op: "GET", Key: "nope"})
	s.Require().NoError(err)
	s.True(res.Scalar().IsNull())
}

func (s *KVAdapterTestSuite) TestHGETALL() {
	res, err := s.a.Execute(s.ctx, Query{Op: "HGETALL", Key: "user:u1"})
	s.Require().NoError(err)
	s.Require().Len(res.Rows, 1)
	name, _ := res.Rows[0]["name"].AsString()
	plan, _ := res.Rows[0]["plan"].AsString()
	s.Equal("Ada", name)
	s.Equal("pro", plan)
}

func (s *KVAdapterTestSuite) TestSMEMBERS() {
	res, err := s.a.Execute(s.ctx, Query{Op: "SMEMBERS", Key: "blocked_ips"})
	s.Require().NoError(err)
	arr, ok := res.Rows[0]["blocked_ips"].AsArray()
	s.True(ok)
	s.Len(arr, 3)
}

func (s *KVAdapterTestSuite) TestHealthCheck() {
	s.True(s.a.HealthCheck(s.ctx))
}

func TestKVAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(KVAdapterTestSuite))
}
