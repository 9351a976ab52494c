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

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// TextEmbedder embeds free text in the video embedding space.
type TextEmbedder interface {
	GenerateTextEmbedding(ctx context.Context, text string) (model.EmbeddingVector, error)
}

// SearchService finds indexed videos matching a natural language query.
type SearchService struct {
	Embedder TextEmbedder
	Store    VectorStore
}

// FindVideos embeds query and returns the maxResults closest videos of namespace.
func (s *SearchService) FindVideos(ctx context.Context, query string, namespace string, maxResults int) (*model.QueryResult, error) {
	if query == "" {
		return nil, model.NewValidationError("query is required")
	}
	if namespace == "" {
		return nil, model.NewValidationError("type is required")
	}
	vector, err := s.Embedder.GenerateTextEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Store.Query(ctx, vector, namespace, maxResults)
}
