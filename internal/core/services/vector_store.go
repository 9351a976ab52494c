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
	"fmt"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultTopK is the number of neighbours used for predictions.
const DefaultTopK = 3

// VectorStore is a namespaced similarity index. Neither operation retries.
type VectorStore interface {
	// Upsert writes entry into the namespace named by its objective.
	Upsert(ctx context.Context, entry *model.IndexEntry) (*model.UpsertAck, error)
	// Query returns up to topK matches of namespace, best first, metadata included.
	Query(ctx context.Context, vector model.EmbeddingVector, namespace string, topK int) (*model.QueryResult, error)
}

// NewVectorStore builds the store selected by cfg.Provider.
func NewVectorStore(cfg cloud.VectorStore, qdrantClient *qdrant.Client) (VectorStore, error) {
	switch cfg.Provider {
	case "", cloud.ProviderPinecone:
		return NewPineconeVectorStore(cfg), nil
	case cloud.ProviderQdrant:
		if qdrantClient == nil {
			return nil, fmt.Errorf("qdrant vector store selected but no client was created")
		}
		return NewQdrantVectorStore(qdrantClient, cfg.IndexName, cfg.TopK), nil
	}
	return nil, fmt.Errorf("unknown vector store provider %q", cfg.Provider)
}

func checkEntry(entry *model.IndexEntry) (string, error) {
	if entry == nil {
		return "", &model.VectorStoreError{Op: "upsert", Err: model.NewValidationError("entry is nil")}
	}
	if err := entry.Vector.Validate(); err != nil {
		return "", &model.VectorStoreError{Op: "upsert", Err: model.NewValidationError("%v", err)}
	}
	ns := entry.Metadata.Objective()
	if ns == "" {
		return "", &model.VectorStoreError{Op: "upsert", Err: model.NewValidationError("metadata has no objective")}
	}
	return ns, nil
}

func checkQuery(vector model.EmbeddingVector, namespace string, topK int) (int, error) {
	if err := vector.Validate(); err != nil {
		return 0, &model.VectorStoreError{Op: "query", Err: model.NewValidationError("%v", err)}
	}
	if namespace == "" {
		return 0, &model.VectorStoreError{Op: "query", Err: model.NewValidationError("namespace is required")}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return topK, nil
}
