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

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/corint-run/corint/engine"
	"github.com/corint-run/corint/xerr"
)

// errorEnvelope is the fatal-error reply: no decision block, just the
// kind and detail.
type errorEnvelope struct {
	Error string `json:"error"`
}

// handleDecide handles POST /decide requests.
func (api *HTTPAPI) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req engine.Request
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		api.writeProblem(w, r, http.StatusBadRequest, "Invalid JSON", "The request body could not be parsed as valid JSON")
		return
	}
	if len(req.Event) == 0 {
		api.writeProblem(w, r, http.StatusBadRequest, "Missing Event", "The request must carry an event payload")
		return
	}

	resp, err := api.engine.Decide(ctx, &req)
	if err != nil {
		writeJSON(w, r, statusFor(err), errorEnvelope{Error: err.Error()})
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// statusFor maps engine error kinds onto HTTP statuses.
func statusFor(err error) int {
	var de xerr.DecisionError
	if errors.As(err, &de) {
		switch de.Kind {
		case xerr.DecisionTimeout:
			return http.StatusGatewayTimeout
		case xerr.DecisionBudgetExceeded:
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// the status line is already out; nothing left but to log
		slog.DebugContext(r.Context(), "error encoding response", "error", err)
	}
}
