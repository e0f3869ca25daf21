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

package extcall

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/pkg/errors"

	"github.com/corint-run/corint/perch"
	"github.com/corint-run/corint/value"
)

// ServiceProvider is the "service" provider: each step names a script
// (by `path`, relative to the repository root, or inline via `script`),
// and the provider keeps one compiled, pooled ScriptProvider per
// distinct script. At most 64 pools are cached, the least recently used
// evicted first, and a cached pool is rebuilt once scriptPoolTTL has
// passed since it was built; an evicted or expired pool is not closed.
type ServiceProvider struct {
	baseDir string
	maxVMs  int32
	scripts *perch.Perch[*ScriptProvider]
	ttl     time.Duration
}

// scriptPoolTTL is how long a cached script pool is reused after it is
// built; hits do not extend it.
const scriptPoolTTL = 10 * time.Minute

func NewServiceProvider(baseDir string, maxVMsPerScript int32) *ServiceProvider {
	return &ServiceProvider{
		baseDir: baseDir,
		maxVMs:  maxVMsPerScript,
		scripts: perch.New[*ScriptProvider](64),
		ttl:     scriptPoolTTL,
	}
}

func (p *ServiceProvider) Invoke(ctx context.Context, params map[string]any, event *value.Object) (value.Value, error) {
	src, key, err := p.resolveSource(params)
	if err != nil {
		return value.Value{}, err
	}

	sp, err := p.scripts.Get(ctx, key, p.ttl, func(ctx context.Context, _ string) (*ScriptProvider, error) {
		return NewScriptProvider(src, p.maxVMs)
	})
	if err != nil {
		return value.Value{}, err
	}
	return sp.Invoke(ctx, params, event)
}

// resolveSource picks the script for this step and derives a stable cache
// key: the resolved path for file scripts, a structural hash for inline
// ones.
func (p *ServiceProvider) resolveSource(params map[string]any) (ScriptSource, string, error) {
	if path, ok := params["path"].(string); ok && path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.baseDir, path)
		}
		src, err := LoadScript(path)
		if err != nil {
			return ScriptSource{}, "", err
		}
		return src, path, nil
	}

	if inline, ok := params["script"].(string); ok && inline != "" {
		src := ScriptSource{Filename: "inline.js", Source: inline}
		if lang, ok := params["lang"].(string); ok && lang == "ts" {
			src.Filename = "inline.ts"
		}
		h, err := hashstructure.Hash(src, hashstructure.FormatV2, nil)
		if err != nil {
			return ScriptSource{}, "", errors.Wrap(err, "extcall: hashing inline script")
		}
		return src, fmt.Sprintf("inline:%x", h), nil
	}

	return ScriptSource{}, "", errors.New("extcall: service step config needs a path or script")
}
