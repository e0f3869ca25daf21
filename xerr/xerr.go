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

// Package xerr defines the engine's error taxonomy: ParseError,
// CompileError, TypeError, UndefinedField, FeatureError, DatasourceError,
// and DecisionError. Each is a distinct Go type so callers can discriminate
// with errors.As while still getting a readable message via Error().
package xerr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/corint-run/corint/tokens"
)

// ParseError surfaces at repository load: YAML or expression syntax errors.
type ParseError struct {
	Where tokens.Range
	Msg   string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Where, e.Msg)
}

func ErrParse(where tokens.Range, format string, args ...any) error {
	return ParseError{Where: where, Msg: fmt.Sprintf(format, args...)}
}

// CompileError surfaces at repository load: unresolved references, circular
// extends chains, literal type mismatches, invalid regex.
type CompileError struct {
	Where tokens.Range
	Msg   string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("compile error at %s: %s", e.Where, e.Msg)
}

func ErrCompile(where tokens.Range, format string, args ...any) error {
	return CompileError{Where: where, Msg: fmt.Sprintf(format, args...)}
}

func ErrUnresolvedReference(kind, name string, where tokens.Range) error {
	return CompileError{Where: where, Msg: fmt.Sprintf("unresolved %s reference: %q", kind, name)}
}

func ErrCircularExtends(chain []string) error {
	return CompileError{Msg: fmt.Sprintf("circular extends chain: %v", chain)}
}

// TypeError is a runtime type mismatch in expression evaluation.
// It never aborts the request: the containing rule simply does not fire.
type TypeError struct {
	Op       string
	Got      string
	Expected string
}

func (e TypeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("type error: %s: got %s, expected %s", e.Op, e.Got, e.Expected)
	}
	return fmt.Sprintf("type error: got %s, expected %s", e.Got, e.Expected)
}

func ErrType(op, got, expected string) error {
	return TypeError{Op: op, Got: got, Expected: expected}
}

// ArithmeticError covers division/modulo by zero.
type ArithmeticError struct {
	Msg string
}

func (e ArithmeticError) Error() string { return "arithmetic error: " + e.Msg }

func ErrArithmetic(msg string) error { return ArithmeticError{Msg: msg} }

// UndefinedFieldError is raised for a required field access that is
// altogether absent, as opposed to a lookup which degrades to Null.
type UndefinedFieldError struct {
	Path []string
}

func (e UndefinedFieldError) Error() string {
	return fmt.Sprintf("undefined field: %v", e.Path)
}

func ErrUndefinedField(path []string) error {
	return UndefinedFieldError{Path: path}
}

// FeatureErrorKind enumerates the feature failure sub-kinds.
type FeatureErrorKind string

const (
	FeatureUnknown     FeatureErrorKind = "unknown_feature"
	FeatureTimeout     FeatureErrorKind = "timeout"
	FeatureQueryFailed FeatureErrorKind = "query_failed"
	FeatureUnavailable FeatureErrorKind = "unavailable"
)

type FeatureError struct {
	Kind    FeatureErrorKind
	Feature string
	Cause   error
}

func (e FeatureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("feature %q: %s: %s", e.Feature, e.Kind, e.Cause)
	}
	return fmt.Sprintf("feature %q: %s", e.Feature, e.Kind)
}

func (e FeatureError) Unwrap() error { return e.Cause }

func ErrFeature(kind FeatureErrorKind, feature string, cause error) error {
	return FeatureError{Kind: kind, Feature: feature, Cause: cause}
}

// DatasourceErrorKind enumerates the datasource failure sub-kinds.
type DatasourceErrorKind string

const (
	DatasourceUnavailable   DatasourceErrorKind = "unavailable"
	DatasourceQueryFailed   DatasourceErrorKind = "query_failed"
	DatasourceTimeout       DatasourceErrorKind = "timeout"
	DatasourcePoolExhausted DatasourceErrorKind = "pool_exhausted"
)

type DatasourceError struct {
	Kind   DatasourceErrorKind
	Source string
	Cause  error
}

func (e DatasourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("datasource %q: %s: %s", e.Source, e.Kind, e.Cause)
	}
	return fmt.Sprintf("datasource %q: %s", e.Source, e.Kind)
}

func (e DatasourceError) Unwrap() error { return e.Cause }

func ErrDatasource(kind DatasourceErrorKind, source string, cause error) error {
	return DatasourceError{Kind: kind, Source: source, Cause: cause}
}

// AsFeatureError maps a DatasourceError to its FeatureError equivalent, the
// translation applied at the feature-executor boundary.
func AsFeatureError(feature string, err error) error {
	var de DatasourceError
	if errors.As(err, &de) {
		switch de.Kind {
		case DatasourceTimeout:
			return ErrFeature(FeatureTimeout, feature, err)
		case DatasourceUnavailable, DatasourcePoolExhausted:
			return ErrFeature(FeatureUnavailable, feature, err)
		default:
			return ErrFeature(FeatureQueryFailed, feature, err)
		}
	}
	return ErrFeature(FeatureQueryFailed, feature, err)
}

// DecisionErrorKind enumerates the fatal, request-ending errors.
type DecisionErrorKind string

const (
	DecisionTimeout        DecisionErrorKind = "timeout"
	DecisionBudgetExceeded DecisionErrorKind = "budget_exceeded"
	DecisionInternalError  DecisionErrorKind = "internal_error"
)

type DecisionError struct {
	Kind  DecisionErrorKind
	Cause error
}

func (e DecisionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e DecisionError) Unwrap() error { return e.Cause }

func ErrDecision(kind DecisionErrorKind, cause error) error {
	return DecisionError{Kind: kind, Cause: cause}
}

// ConflictError is reported by the compiler when two
// rule/ruleset/feature/list definitions collide.
type ConflictError struct {
	What        string
	Where, With tokens.Range
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s at %s (previously defined at %s)", e.What, e.Where, e.With)
}

func ErrConflict(what string, where, with tokens.Range) error {
	return ConflictError{What: what, Where: where, With: with}
}

// Wrap is a thin indirection over errors.Wrapf so call sites stay on
// this package.
func Wrap(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}
