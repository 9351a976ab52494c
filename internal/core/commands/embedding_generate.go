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

package commands

import (
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// GenerateEmbedding embeds the base64 clip on its input.
type GenerateEmbedding struct {
	cor.BaseCommand
	embedder services.Embedder
}

func NewGenerateEmbedding(name string, embedder services.Embedder) *GenerateEmbedding {
	return &GenerateEmbedding{BaseCommand: *cor.NewBaseCommand(name), embedder: embedder}
}

func (c *GenerateEmbedding) Execute(context cor.Context) {
	clip, ok := input[string](&c.BaseCommand, context)
	if !ok {
		return
	}
	vector, err := c.embedder.GenerateEmbedding(context.GetContext(), clip)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, vector)
}
