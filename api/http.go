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

// Package api is the HTTP shell around the decision engine: request
// parsing, status mapping, health, and reload. The engine itself never
// sees net/http.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	sdkotel "go.opentelemetry.io/otel"

	"github.com/corint-run/corint/api/middleware"
	"github.com/corint-run/corint/engine"
	"github.com/corint-run/corint/otel"
)

type ListenerServerPair struct {
	Listener net.Listener
	Server   *http.Server
}

func NewListenerServerPair(listener net.Listener, server *http.Server) *ListenerServerPair {
	return &ListenerServerPair{Listener: listener, Server: server}
}

func (p *ListenerServerPair) Close() error {
	if err := p.Listener.Close(); err != nil {
		return err
	}
	return p.Server.Close()
}

// HTTPAPI serves the decide/reload/health endpoints for one Engine.
type HTTPAPI struct {
	engine    *engine.Engine
	logger    *slog.Logger
	otelCfg   *otel.OTelConfig
	listeners []*ListenerServerPair
}

func NewHTTPAPI(eng *engine.Engine) *HTTPAPI {
	return &HTTPAPI{engine: eng, logger: slog.Default()}
}

// WithOTel attaches the telemetry config; the decide route is then
// wrapped in the tracing middleware.
func (api *HTTPAPI) WithOTel(cfg *otel.OTelConfig) *HTTPAPI {
	api.otelCfg = cfg
	return api
}

func (api *HTTPAPI) Setup(ctx context.Context, port int, listen []string) error {
	mux := http.NewServeMux()

	decide := middleware.RequestIDMiddleware(http.HandlerFunc(api.handleDecide))
	if api.otelCfg != nil && api.otelCfg.Enabled {
		decide = middleware.OTelMiddleware(api.otelCfg,
			sdkotel.Tracer("corint/api"), sdkotel.Meter("corint/api"), decide)
	}
	mux.Handle("POST /decide", decide)
	mux.Handle("POST /reload", http.HandlerFunc(api.handleReload))
	mux.Handle("GET /health", http.HandlerFunc(api.handleHealth))

	bindings, err := resolveBindings(port, listen)
	if err != nil {
		return err
	}

	api.listeners = make([]*ListenerServerPair, 0, len(bindings))
	for _, binding := range bindings {
		ln, err := net.Listen("tcp", binding)
		if err != nil {
			for _, l := range api.listeners {
				l.Close()
			}
			api.listeners = nil
			return fmt.Errorf("failed to listen on %s: %w", binding, err)
		}
		api.listeners = append(api.listeners, NewListenerServerPair(ln, &http.Server{
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			BaseContext: func(l net.Listener) context.Context {
				return ctx
			},
		}))
		api.logger.DebugContext(ctx, "listening", "binding", binding)
	}
	return nil
}

// StartServer serves on every configured listener until the context ends.
func (api *HTTPAPI) StartServer(ctx context.Context, port int, listen []string) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(api.listeners))

	for _, ln := range api.listeners {
		server := ln.Server
		addr := ln.Listener.Addr().String()
		listener := ln.Listener
		wg.Go(func() {
			api.logger.DebugContext(ctx, "decision endpoint available",
				"method", "POST", "url", fmt.Sprintf("http://%s/decide", addr))
			if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		})
	}

	defer func() {
		wg.Wait()
		close(errChan)
	}()
}

// StopServer closes every listener and its server.
func (api *HTTPAPI) StopServer(ctx context.Context) error {
	for _, ln := range api.listeners {
		ln.Close()
	}
	api.listeners = nil
	return nil
}

func (api *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	datasources := api.engine.Health(r.Context())
	healthy := true
	for _, ok := range datasources {
		healthy = healthy && ok
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, r, code, map[string]any{
		"status":      status,
		"datasources": datasources,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (api *HTTPAPI) handleReload(w http.ResponseWriter, r *http.Request) {
	gen, err := api.engine.Reload(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"generation": gen})
}
