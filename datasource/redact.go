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

import "github.com/fatih/structs"

// Redacted returns a trace-safe view of q: the query template and the
// shape of its operands, with every bound parameter value stripped. Trace
// entries must never carry the values themselves.
func (q Query) Redacted() map[string]any {
	m := structs.Map(q)
	m["Args"] = len(q.Args)
	if q.Key != "" {
		m["Key"] = "<redacted>"
	}
	return m
}
