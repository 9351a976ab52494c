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
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// Fetcher downloads a source video.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.SourceVideo, error)
}

// FetchVideo downloads the video of the *IngestionRequest on its input.
type FetchVideo struct {
	cor.BaseCommand
	fetcher Fetcher
}

func NewFetchVideo(name string, fetcher Fetcher) *FetchVideo {
	return &FetchVideo{BaseCommand: *cor.NewBaseCommand(name), fetcher: fetcher}
}

func (c *FetchVideo) Execute(context cor.Context) {
	req, ok := input[*IngestionRequest](&c.BaseCommand, context)
	if !ok {
		return
	}
	video, err := c.fetcher.Fetch(context.GetContext(), req.VideoURL)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.DebugContext(context.GetContext(), "fetched video", "url", req.VideoURL, "bytes", len(video.Data), "mime", video.MIMEType)
	c.Succeed(context, video)
}
