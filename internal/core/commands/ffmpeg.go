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
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// TruncateVideo cuts the *model.SourceVideo on its input down to a clip of at most
// seconds and outputs the base64 encoded clip.
type TruncateVideo struct {
	cor.BaseCommand
	truncator services.Truncator
	seconds   int
}

func NewTruncateVideo(name string, truncator services.Truncator, seconds int) *TruncateVideo {
	return &TruncateVideo{
		BaseCommand: *cor.NewBaseCommand(name),
		truncator:   truncator,
		seconds:     seconds,
	}
}

func (c *TruncateVideo) Execute(context cor.Context) {
	video, ok := input[*model.SourceVideo](&c.BaseCommand, context)
	if !ok {
		return
	}
	clip, err := c.truncator.Truncate(context.GetContext(), video.Data, c.seconds)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, clip)
}
