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

package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain runs its commands sequentially. Each command gets a child span of the
// chain span. A command that is not executable, or a cancelled Go context, is
// recorded as an error of that command.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
}

// NewBaseChain is the constructor for BaseChain.
//
// Inputs:
//   - name: The chain name, used for the chain span and the chain counters.
//
// Outputs:
//   - *BaseChain: An empty chain; add steps with AddCommand.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute runs the commands of the chain against chCtx.
//
// Logic Flow:
//  1. Start the chain span from the Go context held by chCtx.
//  2. For each command, stop if an earlier command failed (unless the chain
//     continues on failure) or if the Go context is done.
//  3. Start a command span and run the command if it is executable, otherwise
//     record a "not executable" error against it.
//  4. Close the command span with the command's status, then hand its CtxOut to
//     the next command as CtxIn.
//  5. Bump the chain's success or error counter.
//
// Inputs:
//   - chCtx: The shared Context of this execution.
func (c *BaseChain) Execute(chCtx Context) {
	outerCtx, chainSpan := c.Tracer.Start(chCtx.GetContext(), fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(command.GetName(), err)
			break
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		if command.IsExecutable(chCtx) {
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			chCtx.AddError(command.GetName(), fmt.Errorf("command not executable: %s", command.GetName()))
		}

		if err := chCtx.GetErrors()[command.GetName()]; err != nil {
			commandSpan.RecordError(err)
			commandSpan.SetStatus(codes.Error, err.Error())
		} else {
			commandSpan.SetStatus(codes.Ok, "")
		}
		commandSpan.End()

		// A command that produced nothing leaves the current input in place.
		if out := chCtx.Get(CtxOut); out != nil {
			chCtx.Add(CtxIn, out)
			chCtx.Remove(CtxOut)
		}
	}

	if chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Error, "chain failed")
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(outerCtx, 1)
		}
		return
	}
	chainSpan.SetStatus(codes.Ok, "")
	if c.SuccessCounter != nil {
		c.SuccessCounter.Add(outerCtx, 1)
	}
}
