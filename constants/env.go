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

// Package constants names the environment variables and fixed identifiers
// CORINT reads at startup.
package constants

const (
	// APPNAME names the CLI binary, the repository manifest filename
	// prefix, and the "@corint/*" JS builtin module namespace.
	APPNAME    = "corint"
	APPVERSION = "0.1.0"

	// PackFileExtension is the repository manifest's filename suffix:
	// "<APPNAME>.pack.toml".
	PackFileExtension = "pack.toml"

	// RepoFileExtension is the extension repository walking (package repo)
	// treats as a CORINT YAML document.
	RepoFileExtension = ".yaml"

	// ExecutionStartTimeUnixKey is the JS VM global under which the
	// external-call sandbox (package extcall) exposes the request's start
	// time to scripts.
	ExecutionStartTimeUnixKey = "__corint_execution_start_unix"

	EnvLogLevel           = "CORINT_LOG_LEVEL"
	EnvDebug              = "CORINT_DEBUG"
	EnvOtelEnabled        = "CORINT_OTEL_ENABLED"
	EnvOtelEndpoint       = "CORINT_OTEL_ENDPOINT"
	EnvOtelProtocol       = "CORINT_OTEL_PROTOCOL"
	EnvOtelTraceExecution = "CORINT_OTEL_TRACE_EXECUTION"
)
