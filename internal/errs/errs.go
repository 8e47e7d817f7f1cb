// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs provides the unified, typed error model shared by every
// component of the orchestrator: a category, a context record, a
// recoverable hint, optional remediation suggestions, and an optional
// cause chain accessible through errors.Is/errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Category classifies an Error for both programmatic handling and display.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryConnection     Category = "connection"
	CategoryAuthentication Category = "authentication"
	CategoryRuntime        Category = "runtime"
	CategoryBuild          Category = "build"
	CategoryDiscovery      Category = "discovery"
	CategoryOrchestration  Category = "orchestration"
	CategoryRunner         Category = "runner"
	CategoryConfiguration  Category = "configuration"
	CategoryTimeout        Category = "timeout"
)

// recoverableByCategory pins the recoverability policy from spec §4.1:
// validation, connection, authentication, configuration, discovery,
// timeout, runner are recoverable; runtime, build, orchestration are not.
var recoverableByCategory = map[Category]bool{
	CategoryValidation:     true,
	CategoryConnection:     true,
	CategoryAuthentication: true,
	CategoryRuntime:        false,
	CategoryBuild:          false,
	CategoryDiscovery:      true,
	CategoryOrchestration:  false,
	CategoryRunner:         true,
	CategoryConfiguration:  true,
	CategoryTimeout:        true,
}

// Context carries structured diagnostic fields for an Error.
type Context struct {
	Operation string
	Phase     string
	Component string
	ModelName string
	NodeID    string
	FilePath  string
	Extra     map[string]any
}

// Error is the structured error type propagated by every public operation
// in the orchestrator.
type Error struct {
	Message     string
	Category    Category
	Context     Context
	Cause       error
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// Unwrap enables errors.Is / errors.As against the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Option customizes an Error at construction time.
type Option func(*Error)

// WithCause attaches an underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) { e.Cause = cause }
}

// WithSuggestions attaches remediation hints.
func WithSuggestions(suggestions ...string) Option {
	return func(e *Error) { e.Suggestions = suggestions }
}

// WithContext replaces the zero-value context.
func WithContext(ctx Context) Option {
	return func(e *Error) { e.Context = ctx }
}

// New creates an Error of the given category, applying the category's
// pinned recoverability policy.
func New(category Category, message string, opts ...Option) *Error {
	e := &Error{
		Message:     message,
		Category:    category,
		Recoverable: recoverableByCategory[category],
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Convenience constructors, one per category, mirroring
// original_source/src/madengine/core/errors.py's exception hierarchy.

func Validation(op, message string, opts ...Option) *Error {
	return withOperation(CategoryValidation, op, message, opts)
}

func Connection(op, message string, opts ...Option) *Error {
	return withOperation(CategoryConnection, op, message, opts)
}

func Authentication(op, message string, opts ...Option) *Error {
	return withOperation(CategoryAuthentication, op, message, opts)
}

func Runtime(op, message string, opts ...Option) *Error {
	return withOperation(CategoryRuntime, op, message, opts)
}

func Build(op, message string, opts ...Option) *Error {
	return withOperation(CategoryBuild, op, message, opts)
}

func Discovery(op, message string, opts ...Option) *Error {
	return withOperation(CategoryDiscovery, op, message, opts)
}

func Orchestration(op, message string, opts ...Option) *Error {
	return withOperation(CategoryOrchestration, op, message, opts)
}

func Runner(op, message string, opts ...Option) *Error {
	return withOperation(CategoryRunner, op, message, opts)
}

func Configuration(op, message string, opts ...Option) *Error {
	return withOperation(CategoryConfiguration, op, message, opts)
}

func Timeout(op, message string, opts ...Option) *Error {
	return withOperation(CategoryTimeout, op, message, opts)
}

func withOperation(category Category, op, message string, opts []Option) *Error {
	e := New(category, message, opts...)
	if e.Context.Operation == "" {
		e.Context.Operation = op
	}
	return e
}

// IsTimeout reports whether err (or a cause in its chain) is a timeout
// category Error, letting callers branch on suspension-point expiry
// without a type switch at every call site.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == CategoryTimeout
	}
	return false
}
