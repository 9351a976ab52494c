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
	"context"
)

// BaseContext is the map backed Context used by every workflow. It is not safe for
// concurrent use; each chain execution gets its own instance.
type BaseContext struct {
	data       map[string]interface{}
	errors     map[string]error
	errorOrder []string
	context    context.Context
}

// NewBaseContext returns an empty Context with no Go context attached.
func NewBaseContext() Context {
	return &BaseContext{
		data:   make(map[string]interface{}),
		errors: make(map[string]error),
	}
}

// NewContextWith returns a BaseContext bound to ctx with input stored under CtxIn.
func NewContextWith(ctx context.Context, input interface{}) Context {
	c := NewBaseContext()
	c.SetContext(ctx)
	if input != nil {
		c.Add(CtxIn, input)
	}
	return c
}

func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	return c.context
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	if _, ok := c.errors[key]; ok {
		return
	}
	c.errors[key] = err
	c.errorOrder = append(c.errorOrder, key)
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

func (c *BaseContext) FirstError() error {
	if len(c.errorOrder) == 0 {
		return nil
	}
	return c.errors[c.errorOrder[0]]
}

func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}
