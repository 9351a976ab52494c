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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// DefaultEmbeddingModel is the Vertex AI publisher model used for embeddings.
const DefaultEmbeddingModel = "multimodalembedding@001"

const maxErrorBody = 4096

type predictParameters struct {
	Dimension int `json:"dimension"`
}

type videoInstance struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type predictInstance struct {
	Video      *videoInstance     `json:"video,omitempty"`
	Text       string             `json:"text,omitempty"`
	Parameters *predictParameters `json:"parameters,omitempty"`
}

type predictRequest struct {
	Instances  []predictInstance  `json:"instances"`
	Parameters *predictParameters `json:"parameters,omitempty"`
}

type predictResponse struct {
	Predictions []struct {
		VideoEmbeddings []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"videoEmbeddings"`
		TextEmbedding []float32 `json:"textEmbedding"`
	} `json:"predictions"`
}

// EmbeddingClient calls the Vertex AI multimodal embedding model over REST and the
// generative model through genai.
type EmbeddingClient struct {
	Credentials cloud.CredentialProvider
	HTTPClient  *http.Client
	Resolver    *ServiceResolver
	Settings    cloud.EmbeddingService
	// Generator answers analysis prompts. Nil disables GenerateVideoAnalysis.
	Generator cloud.ContentGenerator

	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
}

func NewEmbeddingClient(settings cloud.EmbeddingService, credentials cloud.CredentialProvider, generator cloud.ContentGenerator) *EmbeddingClient {
	if settings.EmbeddingModel == "" {
		settings.EmbeddingModel = DefaultEmbeddingModel
	}
	meter := otel.Meter("github.com/jaycherian/gcp-go-predictive-analysis/embedding")
	in, _ := meter.Int64Counter("genai.analysis.tokens.input")
	out, _ := meter.Int64Counter("genai.analysis.tokens.output")
	return &EmbeddingClient{
		Credentials:  credentials,
		HTTPClient:   &http.Client{},
		Resolver:     NewServiceResolver(),
		Settings:     settings,
		Generator:    generator,
		inputTokens:  in,
		outputTokens: out,
	}
}

// Authenticate returns a bearer token for the embedding endpoint.
func (e *EmbeddingClient) Authenticate(ctx context.Context) (string, error) {
	if e.Credentials == nil {
		return "", errors.New("no credential provider configured")
	}
	return e.Credentials.Token(ctx)
}

// GenerateEmbedding embeds a base64 encoded video clip.
func (e *EmbeddingClient) GenerateEmbedding(ctx context.Context, base64Video string) (model.EmbeddingVector, error) {
	if base64Video == "" {
		return nil, model.NewValidationError("video clip is empty")
	}
	req := predictRequest{Instances: []predictInstance{{
		Video:      &videoInstance{BytesBase64Encoded: base64Video},
		Parameters: &predictParameters{Dimension: model.EmbeddingDimension},
	}}}
	resp, err := e.predict(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 || len(resp.Predictions[0].VideoEmbeddings) == 0 {
		return nil, &model.EmbeddingServiceError{StatusCode: http.StatusOK, Msg: "response carries no video embedding"}
	}
	return validated(resp.Predictions[0].VideoEmbeddings[0].Embedding)
}

// GenerateTextEmbedding embeds a text into the same vector space as the videos.
func (e *EmbeddingClient) GenerateTextEmbedding(ctx context.Context, text string) (model.EmbeddingVector, error) {
	if text == "" {
		return nil, model.NewValidationError("text is empty")
	}
	req := predictRequest{
		Instances:  []predictInstance{{Text: text}},
		Parameters: &predictParameters{Dimension: model.EmbeddingDimension},
	}
	resp, err := e.predict(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, &model.EmbeddingServiceError{StatusCode: http.StatusOK, Msg: "response carries no text embedding"}
	}
	return validated(resp.Predictions[0].TextEmbedding)
}

func validated(values []float32) (model.EmbeddingVector, error) {
	v := model.EmbeddingVector(values)
	if err := v.Validate(); err != nil {
		return nil, &model.EmbeddingServiceError{StatusCode: http.StatusOK, Msg: "unexpected embedding dimension", Err: err}
	}
	return v, nil
}

// PredictURL returns the :predict URL of the embedding model.
func (e *EmbeddingClient) PredictURL(ctx context.Context) (string, error) {
	return e.Resolver.ResolveURL(ctx, RequestSetting{
		BaseURL:             e.Settings.Endpoint,
		Pathname:            fmt.Sprintf("publishers/google/models/%s:predict", e.Settings.EmbeddingModel),
		UseSRV:              e.Settings.Discovery.UseSRV,
		ServiceDiscEndpoint: e.Settings.Discovery.ServiceDiscEndpoint,
	})
}

func (e *EmbeddingClient) predict(ctx context.Context, body predictRequest) (*predictResponse, error) {
	if d := e.Settings.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	token, err := e.Authenticate(ctx)
	if err != nil {
		return nil, &model.EmbeddingServiceError{Msg: "authentication failed", Err: err}
	}
	url, err := e.PredictURL(ctx)
	if err != nil {
		return nil, &model.EmbeddingServiceError{Msg: "failed to resolve endpoint", Err: err}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &model.EmbeddingServiceError{Msg: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &model.EmbeddingServiceError{Msg: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, &model.EmbeddingServiceError{Msg: "request failed", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		slog.WarnContext(ctx, "embedding request rejected", "status", res.StatusCode, "url", url)
		return nil, &model.EmbeddingServiceError{StatusCode: res.StatusCode, Msg: string(bytes.TrimSpace(detail))}
	}

	out := &predictResponse{}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return nil, &model.EmbeddingServiceError{StatusCode: res.StatusCode, Msg: "failed to decode response", Err: err}
	}
	return out, nil
}

// GenerateVideoAnalysis asks the generative model to analyze a clip and returns
// its raw text answer.
func (e *EmbeddingClient) GenerateVideoAnalysis(ctx context.Context, base64Video string, prompt string, mimeType string) (string, error) {
	if e.Generator == nil {
		return "", &model.EmbeddingServiceError{Msg: "no analysis model configured"}
	}
	data, err := base64.StdEncoding.DecodeString(base64Video)
	if err != nil {
		return "", model.NewValidationError("video clip is not valid base64: %v", err)
	}
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	if d := e.Settings.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		}, genai.RoleUser),
	}
	// One attempt; retry policy belongs to the caller, as for embeddings.
	out, err := cloud.GenerateMultiModalResponse(ctx, e.inputTokens, e.outputTokens, nil, e.Generator, contents, 1)
	if err != nil {
		return "", &model.EmbeddingServiceError{Msg: "video analysis failed", Err: err}
	}
	return out, nil
}
