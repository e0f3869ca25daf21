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

package dsl

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/corint-run/corint/xerr"
)

// ParseAll reads every `---`-separated YAML document from r, tagging each
// with source for diagnostics.
func ParseAll(r io.Reader, source string) ([]Document, error) {
	dec := yaml.NewDecoder(r)
	var docs []Document
	for {
		var d Document
		err := dec.Decode(&d)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerr.Wrap(err, "dsl: parsing %s", source)
		}
		if isEmptyDocument(d) {
			continue
		}
		d.Source = source
		if err := d.validateSingleVariant(); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func isEmptyDocument(d Document) bool {
	return d.Rule == nil && d.Ruleset == nil && d.Pipeline == nil &&
		d.Feature == nil && d.List == nil && d.Registry == nil
}

func (d Document) validateSingleVariant() error {
	count := 0
	for _, set := range []bool{d.Rule != nil, d.Ruleset != nil, d.Pipeline != nil, d.Feature != nil, d.List != nil, d.Registry != nil} {
		if set {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("dsl: document in %s must have exactly one of rule/ruleset/pipeline/feature/list/registry, got %d", d.Source, count)
	}
	return nil
}
