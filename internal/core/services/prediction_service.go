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
	"log/slog"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// Truncator cuts a video to a bounded, base64 encoded clip.
type Truncator interface {
	Truncate(ctx context.Context, buffer []byte, seconds int) (string, error)
}

// Embedder turns a base64 clip into an embedding.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, base64Video string) (model.EmbeddingVector, error)
}

// Ingestor runs the full fetch, truncate, embed and upsert sequence for one video.
type Ingestor interface {
	Ingest(ctx context.Context, videoURL string, metadata model.MetadataRecord) (*model.UpsertAck, error)
}

// PredictionService serves the synchronous create and upload flows.
type PredictionService struct {
	Truncator   Truncator
	Embedder    Embedder
	Store       VectorStore
	Predictor   *MetricPredictor
	Ingestor    Ingestor
	ClipSeconds int
	TopK        int
}

// CreatePrediction embeds video, finds its nearest neighbours in namespace and
// derives the metric estimate from them. Nothing is written to the index.
func (s *PredictionService) CreatePrediction(ctx context.Context, video *model.SourceVideo, namespace string) (*model.PredictionResult, error) {
	if video == nil || len(video.Data) == 0 {
		return nil, model.NewValidationError("a video file is required")
	}
	if namespace == "" {
		return nil, model.NewValidationError("type is required")
	}

	clip, err := s.Truncator.Truncate(ctx, video.Data, s.ClipSeconds)
	if err != nil {
		return nil, err
	}
	vector, err := s.Embedder.GenerateEmbedding(ctx, clip)
	if err != nil {
		return nil, err
	}
	similar, err := s.Store.Query(ctx, vector, namespace, s.TopK)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "similar videos found", "namespace", namespace, "matches", len(similar.Matches))

	return &model.PredictionResult{
		Namespace:         similar.Namespace,
		Matches:           similar.Matches,
		MetricPredictions: s.Predictor.Predict(similar),
	}, nil
}

// EmbedAndUpload indexes the video at videoURL under metadata's objective. It is
// a single attempt; callers decide about retries.
func (s *PredictionService) EmbedAndUpload(ctx context.Context, videoURL string, metadata model.MetadataRecord) (*model.UpsertAck, error) {
	if videoURL == "" {
		return nil, model.NewValidationError("videoUrl is required")
	}
	if metadata.Objective() == "" {
		return nil, model.NewValidationError("metaData.objective is required")
	}
	return s.Ingestor.Ingest(ctx, videoURL, metadata)
}
