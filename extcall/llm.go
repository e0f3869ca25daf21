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
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/corint-run/corint/value"
)

// Generator is the opaque text-generation capability behind the "llm"
// provider. The engine never talks to a model vendor directly; whoever
// embeds the engine supplies a Generator.
type Generator interface {
	Generate(ctx context.Context, prompt, model string, opts map[string]any) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt, model string, opts map[string]any) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt, model string, opts map[string]any) (string, error) {
	return f(ctx, prompt, model, opts)
}

// LLMProvider renders the step's prompt template against the event,
// invokes the Generator, and binds the reply. A reply that parses as a
// JSON object or array binds structured; anything else binds as a string.
//
// Step config keys:
//
//	prompt: template; `{event.<path>}` references substitute from the event
//	model:  model identifier passed through to the Generator
//	any other key is forwarded in opts verbatim
type LLMProvider struct {
	gen Generator
}

func NewLLMProvider(gen Generator) *LLMProvider {
	return &LLMProvider{gen: gen}
}

func (p *LLMProvider) Invoke(ctx context.Context, params map[string]any, event *value.Object) (value.Value, error) {
	promptTmpl, _ := params["prompt"].(string)
	if promptTmpl == "" {
		return value.Value{}, errors.New("extcall: llm step config is missing a prompt")
	}
	model, _ := params["model"].(string)

	opts := make(map[string]any, len(params))
	for k, v := range params {
		if k == "prompt" || k == "model" {
			continue
		}
		opts[k] = v
	}

	reply, err := p.gen.Generate(ctx, renderPrompt(promptTmpl, event), model, opts)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "extcall: llm generate")
	}
	return parseReply(reply), nil
}

// renderPrompt substitutes `{event.<path>}` references; unresolved
// references render empty rather than failing the call.
func renderPrompt(tmpl string, event *value.Object) string {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.IndexByte(tmpl[i:], '{')
		if start < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		start += i
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		end += start
		out.WriteString(tmpl[i:start])
		out.WriteString(resolveEventRef(tmpl[start+1:end], event))
		i = end + 1
	}
	return out.String()
}

func resolveEventRef(ref string, event *value.Object) string {
	const prefix = "event."
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	cur := value.FromObject(event)
	for _, seg := range strings.Split(strings.TrimPrefix(ref, prefix), ".") {
		obj, ok := cur.AsObject()
		if !ok {
			return ""
		}
		next, ok := obj.Get(seg)
		if !ok {
			return ""
		}
		cur = next
	}
	return cur.CoerceString()
}

func parseReply(reply string) value.Value {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v value.Value
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return value.String(reply)
}
