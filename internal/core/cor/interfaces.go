// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package cor is a small chain of responsibility framework. The ingestion steps of
// the service are each a Command, composed into a Chain and executed against one
// shared Context.
//
// Logic Flow:
//  1. A caller builds a Context with NewContextWith, storing the request under CtxIn.
//  2. The Chain starts a span and runs each Command in order. A Command reads its
//     input param, does its work and stores its result under its output param.
//  3. Between commands the Chain moves CtxOut into CtxIn, so each step consumes the
//     previous step's result.
//  4. Failures are recorded on the Context against the command name. The Chain
//     stops at the first failure unless ContinueOnFailure was set.
//  5. The caller inspects HasErrors / FirstError and reads the final CtxIn.
//
// Every command carries its own tracer and success/error counters, so each step
// shows up separately in Cloud Trace and Cloud Monitoring.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CtxIn holds the primary input of a command. A chain moves the previous
	// command's CtxOut here before running the next command.
	CtxIn = "__IN__"
	// CtxOut holds the primary output of a command.
	CtxOut = "__OUT__"
)

// Context is the state shared by the commands of one chain execution: the Go
// context carrying cancellation and the active span, a key/value bag for inputs
// and outputs, and the errors recorded so far.
type Context interface {
	// SetContext replaces the Go context. Chains swap in a per-command span
	// context for the duration of each command.
	SetContext(context context.Context)
	GetContext() context.Context

	Add(key string, value interface{}) Context
	Get(key string) interface{}
	Remove(key string)

	// AddError records the failure of the command named key. Only the first error
	// of a given command is kept.
	AddError(key string, err error)
	GetErrors() map[string]error
	HasErrors() bool
	// FirstError returns the earliest recorded error, or nil.
	FirstError() error
}

// Executable is anything that runs against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is a named, instrumented step of a chain.
type Command interface {
	Executable

	GetName() string
	// GetInputParam is the Context key the command reads, CtxIn by default.
	GetInputParam() string
	// GetOutputParam is the Context key the command writes, CtxOut by default.
	GetOutputParam() string

	// IsExecutable reports whether the context holds what the command needs.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain runs commands in order, piping CtxOut of one into CtxIn of the next.
// A Chain is itself a Command, so chains nest.
type Chain interface {
	Command

	// ContinueOnFailure makes the chain run the remaining commands after a failure.
	ContinueOnFailure(bool) Chain
	AddCommand(command Command) Chain
}
