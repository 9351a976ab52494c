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

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// DefaultAnalysisPrompt is used when no analysis template is configured.
const DefaultAnalysisPrompt = `You are a UGC (User Generated Content) expert, well trained in analyzing UGC ads on
parameters like cpm (cost per mille), ctr (click through rate), cpc (cost per click) and ROAS (return on ad spend).
Using that experience, evaluate the attached UGC ad video for its first 10 seconds and decide whether people will
stick to it. Provide your feedback as an analysis, made of the positive and the negative observations about the
product, and as a suggestion, advising the owner of the video in bulleted points how to improve it.
Your response must follow the format given without any additional text.
### Response format
` + "```json" + `
{
	"analysis": {
		"positiveFeedback": "string",
		"negativeFeedback": "string"
	},
	"suggestion": "string"
}
` + "```" + `
### Some Important Points
1. Be accurate in your feedback and suggestion.
2. If you don't find positives or negatives about the video, acknowledge it in your response.
3. Respond in bulleted points for both analysis and suggestion.
4. Analyze the video based on the objective it is trying to achieve, given below.
5. You are only given the first 10 seconds of the video, the most important part. Only comment on those
seconds and do not give feedback about things whose context is not in the clip.

Objective -: {{.Objective}}

Note -: None of the response fields may be empty. Only provide the JSON response, nothing more.
`

// VideoAnalyzer answers a prompt about a clip.
type VideoAnalyzer interface {
	GenerateVideoAnalysis(ctx context.Context, base64Video string, prompt string, mimeType string) (string, error)
}

// AnalysisService produces creative feedback for an ad video.
type AnalysisService struct {
	Truncator   Truncator
	Analyzer    VideoAnalyzer
	ClipSeconds int
	prompt      *template.Template
}

// NewAnalysisService parses promptSource, falling back to DefaultAnalysisPrompt.
func NewAnalysisService(truncator Truncator, analyzer VideoAnalyzer, promptSource string, clipSeconds int) (*AnalysisService, error) {
	if strings.TrimSpace(promptSource) == "" {
		promptSource = DefaultAnalysisPrompt
	}
	tmpl, err := template.New("analysis-template").Parse(promptSource)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis prompt: %w", err)
	}
	return &AnalysisService{Truncator: truncator, Analyzer: analyzer, ClipSeconds: clipSeconds, prompt: tmpl}, nil
}

// RenderPrompt fills the template for objective.
func (s *AnalysisService) RenderPrompt(objective string) (string, error) {
	var sb strings.Builder
	if err := s.prompt.Execute(&sb, map[string]string{"Objective": objective}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// AnalyzeVideo returns the model's JSON feedback for the first seconds of video.
func (s *AnalysisService) AnalyzeVideo(ctx context.Context, video *model.SourceVideo, objective string) (map[string]any, error) {
	if video == nil || len(video.Data) == 0 {
		return nil, model.NewValidationError("a video file is required")
	}
	if objective == "" {
		return nil, model.NewValidationError("type is required")
	}
	prompt, err := s.RenderPrompt(objective)
	if err != nil {
		return nil, fmt.Errorf("failed to render analysis prompt: %w", err)
	}
	clip, err := s.Truncator.Truncate(ctx, video.Data, s.ClipSeconds)
	if err != nil {
		return nil, err
	}
	text, err := s.Analyzer.GenerateVideoAnalysis(ctx, clip, prompt, video.MIMEType)
	if err != nil {
		return nil, err
	}
	out, err := ExtractJSON(text)
	if err != nil {
		return nil, &model.EmbeddingServiceError{Msg: "analysis response is not JSON", Err: err}
	}
	return out, nil
}

// ExtractJSON decodes the outermost JSON object found in text, ignoring any prose
// or markdown fences around it.
func ExtractJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, err
	}
	return out, nil
}
