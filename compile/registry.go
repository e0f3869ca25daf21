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
	"github.com/corint-run/corint/tokens"
	"github.com/corint-run/corint/xerr"
)

// compileRegistry lowers the single Registry document into the ordered
// RegistryEntry slice package registry walks at request time.
// A repository with no registry document compiles to an empty registry --
// every event falls through to the default pipeline, if any.
func compileRegistry(doc *dsl.RegistryDoc, pipelines map[string]*ir.Pipeline) ([]ir.RegistryEntry, string, error) {
	if doc == nil {
		return nil, "", nil
	}

	defaultPL := doc.Default
	if defaultPL != "" {
		if _, ok := pipelines[defaultPL]; !ok {
			return nil, "", xerr.ErrUnresolvedReference("pipeline", defaultPL, tokens.Range{})
		}
	}

	var out []ir.RegistryEntry
	for i, e := range doc.Entries {
		field := fmt.Sprintf("registry/entries[%d]", i)
		if _, ok := pipelines[e.PipelineID]; !ok {
			return nil, "", xerr.ErrUnresolvedReference("pipeline", e.PipelineID, tokens.Range{})
		}
		expr, err := parseExpr(e.When, field)
		if err != nil {
			return nil, "", err
		}
		expr, err = foldConstants(expr, field)
		if err != nil {
			return nil, "", err
		}
		out = append(out, ir.RegistryEntry{PipelineID: e.PipelineID, When: expr})
	}
	return out, defaultPL, nil
}
