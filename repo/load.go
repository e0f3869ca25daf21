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

package repo

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/corint-run/corint/compile"
	"github.com/corint-run/corint/constants"
	"github.com/corint-run/corint/datasource"
	"github.com/corint-run/corint/dsl"
	"github.com/corint-run/corint/ir"
)

// datasourceDoc is one configs/datasources/*.yaml document. Datasource
// configuration is deployment wiring, not rule content, so it has its own
// document grammar here rather than in package dsl.
type datasourceDoc struct {
	Datasource struct {
		Name           string  `yaml:"name"`
		Kind           string  `yaml:"kind"` // sql | olap | kv
		DSN            string  `yaml:"dsn"`
		MaxPoolSize    int32   `yaml:"max_pool_size,omitempty"`
		QueryTimeoutMS int     `yaml:"query_timeout_ms,omitempty"`
		RetryTries     int     `yaml:"retry_tries,omitempty"`
		RetryBaseMS    int     `yaml:"retry_base_ms,omitempty"`
		RetryMaxMS     int     `yaml:"retry_max_ms,omitempty"`
		RetryFactor    float64 `yaml:"retry_factor,omitempty"`
	} `yaml:"datasource"`
}

// loadSources walks the repository layout and returns the parsed rule
// documents plus datasource configs. All files parse before anything
// compiles; the first failure aborts the whole load.
//
//	registry.yaml
//	pipelines/*.yaml
//	library/rules/*.yaml
//	library/rulesets/*.yaml
//	configs/datasources/*.yaml
//	configs/features/*.yaml
//	configs/lists/*.yaml
func loadSources(ctx context.Context, root string) ([]dsl.Document, []datasource.Config, error) {
	var docs []dsl.Document
	var dsConfigs []datasource.Config

	err := fs.WalkDir(os.DirFS(root), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), constants.RepoFileExtension) {
			return nil
		}

		full := filepath.Join(root, path)
		if strings.HasPrefix(path, filepath.Join("configs", "datasources")) {
			cfg, err := loadDatasourceConfig(full)
			if err != nil {
				return err
			}
			dsConfigs = append(dsConfigs, cfg)
			return nil
		}

		f, err := os.Open(full)
		if err != nil {
			return errors.Wrapf(err, "repo: opening %s", path)
		}
		defer f.Close()

		parsed, err := dsl.ParseAll(f, path)
		if err != nil {
			return err
		}
		docs = append(docs, parsed...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return docs, dsConfigs, nil
}

func loadDatasourceConfig(path string) (datasource.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return datasource.Config{}, errors.Wrapf(err, "repo: reading %s", path)
	}
	var doc datasourceDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return datasource.Config{}, errors.Wrapf(err, "repo: parsing %s", path)
	}
	d := doc.Datasource
	if d.Name == "" {
		return datasource.Config{}, errors.Errorf("repo: %s: datasource is missing a name", path)
	}
	return datasource.Config{
		Name:         d.Name,
		Kind:         datasource.Kind(d.Kind),
		DSN:          d.DSN,
		MaxPoolSize:  d.MaxPoolSize,
		QueryTimeout: time.Duration(d.QueryTimeoutMS) * time.Millisecond,
		RetryTries:   d.RetryTries,
		RetryBase:    time.Duration(d.RetryBaseMS) * time.Millisecond,
		RetryMax:     time.Duration(d.RetryMaxMS) * time.Millisecond,
		RetryFactor:  d.RetryFactor,
	}, nil
}

// compileAll lowers parsed documents into one Artifacts table. File-list
// paths resolve relative to the repository root before the list backends
// open them.
func compileAll(docs []dsl.Document, root string) (*ir.Artifacts, error) {
	c := compile.NewCompiler()
	for _, d := range docs {
		if err := c.Add(d); err != nil {
			return nil, err
		}
	}
	arts, err := c.Compile()
	if err != nil {
		return nil, err
	}
	for _, l := range arts.Lists {
		if l.Backend == ir.ListFile && !filepath.IsAbs(l.Path) {
			l.Path = filepath.Join(root, l.Path)
		}
	}
	return arts, nil
}
