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

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// Analyzer returns generative feedback about a video.
type Analyzer interface {
	AnalyzeVideo(ctx context.Context, video *model.SourceVideo, objective string) (map[string]any, error)
}

type AnalysisHandlers struct {
	Analyzer      Analyzer
	MaxVideoBytes int64
}

func (h *AnalysisHandlers) Register(r *gin.RouterGroup) {
	r.POST("/analysis", h.analyze)
}

func (h *AnalysisHandlers) analyze(c *gin.Context) {
	video, err := readVideoUpload(c, h.MaxVideoBytes)
	if err != nil {
		WriteError(c, err)
		return
	}
	out, err := h.Analyzer.AnalyzeVideo(c.Request.Context(), video, c.PostForm("type"))
	if err != nil {
		WriteError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "analysis created", out)
}
