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

import "github.com/corint-run/corint/tokens"

// ListRef is the compiled form of a `list.<id>` designator on the right
// side of `in`/`not_in`. The parser produces a plain FieldAccess for
// `list.<id>`; package compile rewrites it into a ListRef once it
// confirms the left-hand operator is in/not_in and the id resolves
// against the compiled list table.
type ListRef struct {
	base
	ListID string
}

func NewListRef(listID string, pos tokens.Position) *ListRef {
	return &ListRef{base: base{Pos: pos}, ListID: listID}
}

func (l *ListRef) String() string  { return "list." + l.ListID }
func (l *ListRef) expressionNode() {}

var _ Expression = (*ListRef)(nil)
