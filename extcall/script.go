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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/jackc/puddle/v2"
	"github.com/pkg/errors"

	"github.com/corint-run/corint/constants"
	"github.com/corint-run/corint/value"
)

// ScriptProvider runs one script for the "service" provider: a JavaScript
// (or TypeScript) function invoked with the event payload and the step's
// config. Scripts run in pooled, pre-compiled goja VMs; one acquire per
// invocation, with context cancellation wired into the VM's interrupt
// mechanism. Choosing the script (`script` or `path` config) is done by
// ServiceProvider, when the step runs.
//
// Step config keys read here:
//
//	entry:  exported function name, default "handle"
type ScriptProvider struct {
	pool *puddle.Pool[*scriptVM]
}

type scriptVM struct {
	rt    *goja.Runtime
	entry map[string]goja.Callable
}

// ScriptSource carries one resolved script: its source text and origin
// filename (which decides the transpile loader).
type ScriptSource struct {
	Filename string
	Source   string
}

// LoadScript reads path from disk. Transpilation happens in
// NewScriptProvider so inline `script:` config goes through the same
// code path.
func LoadScript(path string) (ScriptSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScriptSource{}, errors.Wrapf(err, "extcall: reading script %s", path)
	}
	return ScriptSource{Filename: filepath.Base(path), Source: string(b)}, nil
}

// NewScriptProvider compiles src once and builds a pool of up to maxVMs
// VMs, created on demand. The script must assign its handlers onto
// `exports`, CommonJS style; every exported function is callable as an
// `entry`. The script is evaluated once here, so one that throws or
// exports no functions is rejected before the pool is built.
func NewScriptProvider(src ScriptSource, maxVMs int32) (*ScriptProvider, error) {
	js, err := transpile(src)
	if err != nil {
		return nil, err
	}
	program, err := goja.Compile(src.Filename, wrapModule(js), true)
	if err != nil {
		return nil, errors.Wrapf(err, "extcall: compiling script %s", src.Filename)
	}
	if _, err := newScriptVM(program); err != nil {
		return nil, err
	}

	if maxVMs <= 0 {
		maxVMs = 4
	}
	pool, err := puddle.NewPool(&puddle.Config[*scriptVM]{
		Constructor: func(ctx context.Context) (*scriptVM, error) {
			return newScriptVM(program)
		},
		Destructor: func(*scriptVM) {},
		MaxSize:    maxVMs,
	})
	if err != nil {
		return nil, err
	}
	return &ScriptProvider{pool: pool}, nil
}

func newScriptVM(program *goja.Program) (*scriptVM, error) {
	rt := goja.New()
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	moduleObj := rt.NewObject()
	exportsObj := rt.NewObject()
	if err := moduleObj.Set("exports", exportsObj); err != nil {
		return nil, err
	}

	fnVal, err := rt.RunProgram(program)
	if err != nil {
		return nil, errors.Wrap(err, "extcall: evaluating script")
	}
	factory, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, errors.New("extcall: script did not evaluate to a module factory")
	}
	if _, err := factory(goja.Undefined(), moduleObj, exportsObj); err != nil {
		return nil, errors.Wrap(err, "extcall: running script body")
	}

	// module.exports may have been reassigned wholesale.
	final := moduleObj.Get("exports").ToObject(rt)
	entries := map[string]goja.Callable{}
	for _, key := range final.Keys() {
		if fn, ok := goja.AssertFunction(final.Get(key)); ok {
			entries[key] = fn
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("extcall: script exports no functions")
	}
	return &scriptVM{rt: rt, entry: entries}, nil
}

func (p *ScriptProvider) Invoke(ctx context.Context, params map[string]any, event *value.Object) (value.Value, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "extcall: acquiring script VM")
	}
	defer res.Release()
	vm := res.Value()

	entryName := "handle"
	if e, ok := params["entry"].(string); ok && e != "" {
		entryName = e
	}
	fn, ok := vm.entry[entryName]
	if !ok {
		return value.Value{}, errors.Errorf("extcall: script exports no function %q", entryName)
	}

	payload, err := eventToMap(event)
	if err != nil {
		return value.Value{}, err
	}

	if err := vm.rt.Set(constants.ExecutionStartTimeUnixKey, time.Now().UTC().Unix()); err != nil {
		return value.Value{}, err
	}

	stop := installInterrupt(ctx, vm.rt)
	defer stop()

	out, err := fn(goja.Undefined(), vm.rt.ToValue(payload), vm.rt.ToValue(params))
	if err != nil {
		return value.Value{}, errors.Wrap(err, "extcall: script invocation")
	}
	return value.FromAny(normalize(out.Export()))
}

func installInterrupt(ctx context.Context, rt *goja.Runtime) (stop func()) {
	if ctx == nil {
		return func() {}
	}
	done := make(chan struct{})
	rt.ClearInterrupt()
	go func() {
		select {
		case <-ctx.Done():
			rt.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() { close(done); rt.ClearInterrupt() }
}

// normalize maps goja export types onto what value.FromAny accepts.
func normalize(raw any) any {
	switch t := raw.(type) {
	case map[string]any:
		for k, v := range t {
			t[k] = normalize(v)
		}
		return t
	case []any:
		for i, v := range t {
			t[i] = normalize(v)
		}
		return t
	default:
		return raw
	}
}

func transpile(src ScriptSource) (string, error) {
	loader := api.LoaderJS
	switch strings.ToLower(filepath.Ext(src.Filename)) {
	case ".ts", ".tsx", ".mts", ".cts":
		loader = api.LoaderTS
	}

	res := api.Transform(src.Source, api.TransformOptions{
		Loader:  loader,
		Target:  api.ES2019,
		Format:  api.FormatCommonJS,
		Charset: api.CharsetUTF8,
	})
	if len(res.Errors) > 0 {
		return "", errors.Errorf("extcall: transpiling %s: %s", src.Filename, res.Errors[0].Text)
	}
	return string(res.Code), nil
}

// wrapModule compiles the script to a callable factory so nothing leaks
// into VM globals: (module, exports) => { ...script... }.
func wrapModule(js string) string {
	return "(function(module, exports) {\n" + js + "\n})"
}
