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

// Package engine is the decide(request) -> response boundary every
// transport and binding consumes. An Engine owns one repo.Repository;
// each Decide call captures the active generation, routes the event,
// executes the selected pipeline, and assembles the response envelope.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/corint-run/corint/decision"
	"github.com/corint-run/corint/repo"
	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// RequestOptions are the per-request knobs of the boundary.
type RequestOptions struct {
	EnableTrace    bool  `json:"enable_trace,omitempty"`
	ReturnFeatures bool  `json:"return_features,omitempty"`
	DeadlineMS     int64 `json:"deadline_ms,omitempty"`
}

// Request is the inbound half of the boundary. Event must carry a "type"
// field for routing. Features, when supplied, pre-populate the request's
// feature cache and suppress lazy computation of those names.
type Request struct {
	Event    map[string]any    `json:"event"`
	Features map[string]any    `json:"features,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Options  RequestOptions    `json:"options,omitempty"`
}

// Engine owns the repository and serves decisions against its active
// generation. Safe for concurrent use.
type Engine struct {
	repo *repo.Repository
	log  *slog.Logger
}

func New(r *repo.Repository, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{repo: r, log: log}
}

// Open loads the repository at root and wraps it in an Engine.
func Open(ctx context.Context, root string, opts repo.Options) (*Engine, error) {
	r, err := repo.Open(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	return New(r, opts.Logger), nil
}

// Decide runs one request through routing, pipeline execution, and
// response assembly. Fatal failures return an error and no response;
// degraded features and skipped rules surface only through the decision
// and its trace.
func (e *Engine) Decide(ctx context.Context, req *Request) (*decision.Response, error) {
	started := time.Now()
	requestID := uuid.NewString()

	gen := e.repo.Active()
	if gen == nil {
		return nil, xerr.ErrDecision(xerr.DecisionInternalError, errors.New("engine: no active repository generation"))
	}

	deadlineMS := req.Options.DeadlineMS
	if deadlineMS <= 0 {
		deadlineMS = int64(gen.Manifest.Defaults.DeadlineMS)
	}
	if deadlineMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(deadlineMS)*time.Millisecond)
		defer cancel()
	}

	event, err := value.FromAny(anyMap(req.Event))
	if err != nil {
		return nil, xerr.ErrDecision(xerr.DecisionInternalError, errors.Wrap(err, "engine: event payload"))
	}
	eventObj, _ := event.AsObject()

	var preFeatures *value.Object
	if len(req.Features) > 0 {
		fv, err := value.FromAny(anyMap(req.Features))
		if err != nil {
			return nil, xerr.ErrDecision(xerr.DecisionInternalError, errors.Wrap(err, "engine: features payload"))
		}
		preFeatures, _ = fv.AsObject()
	}

	pl, ok := gen.Router.Select(ctx, eventObj)
	if !ok {
		resp := decision.Pass(requestID, "no matching pipeline")
		finalize(resp, req, started)
		return resp, nil
	}

	res, err := gen.Interp.Execute(ctx, pl, eventObj, preFeatures, req.Options.EnableTrace)
	if err != nil {
		e.log.WarnContext(ctx, "decision failed", "request_id", requestID, "pipeline", pl.ID, "error", err)
		return nil, err
	}

	resp := decision.FromResult(requestID, res, decision.Options{
		ReturnFeatures: req.Options.ReturnFeatures,
		TraceBudget:    gen.Manifest.Defaults.TraceBudget,
	})
	finalize(resp, req, started)

	e.log.DebugContext(ctx, "decision served",
		"request_id", requestID, "pipeline", resp.PipelineID,
		"result", resp.Decision.Result, "score", resp.Decision.Score,
		"elapsed", time.Since(started))
	return resp, nil
}

// DecideEvent is the simple-path API: raw event data, default options.
// It shares every code path with Decide, so the two cannot drift.
func (e *Engine) DecideEvent(ctx context.Context, event map[string]any) (*decision.Response, error) {
	return e.Decide(ctx, &Request{Event: event})
}

// Reload rebuilds the repository and atomically activates the new
// generation. In-flight requests finish on the generation they captured.
func (e *Engine) Reload(ctx context.Context) (int64, error) {
	return e.repo.Reload(ctx)
}

// Health reports per-datasource health for the active generation.
func (e *Engine) Health(ctx context.Context) map[string]bool {
	gen := e.repo.Active()
	if gen == nil {
		return nil
	}
	return gen.Datasources.HealthCheck(ctx)
}

func (e *Engine) Close() error { return e.repo.Close() }

func finalize(resp *decision.Response, req *Request, started time.Time) {
	resp.ProcessingTimeMS = float64(time.Since(started).Microseconds()) / 1000.0
	for k, v := range req.Metadata {
		resp.Metadata[k] = v
	}
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
