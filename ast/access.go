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

package ast

import (
	"strings"

	"github.com/corint-run/corint/tokens"
)

// FieldAccess reads a dotted path off the evaluation context, e.g.
// `event.user.id` or `results.r1.score`. Each segment is a
// plain identifier; array indexing is expressed through the `index`
// builtin function rather than bracket syntax, keeping the grammar small.
type FieldAccess struct {
	base
	Path []string
}

func NewFieldAccess(path []string, pos tokens.Position) *FieldAccess {
	return &FieldAccess{base: base{Pos: pos}, Path: path}
}

func (f *FieldAccess) String() string  { return strings.Join(f.Path, ".") }
func (f *FieldAccess) expressionNode() {}

var _ Expression = (*FieldAccess)(nil)
