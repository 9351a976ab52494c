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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/workflow"
)

type StateManager struct {
	config     *cloud.Config
	cloud      *cloud.ServiceClients
	embeddings *services.EmbeddingClient
	store      services.VectorStore
	fetcher    *services.VideoFetcher
	ingestion  *workflow.IngestionWorkflow
	bulk       *workflow.BulkIngestionPipeline
	prediction *services.PredictionService
	analysis   *services.AnalysisService
	search     *services.SearchService
}

var state = &StateManager{}

// SetupOS defaults the configuration directory and runtime when the environment
// does not set them.
func SetupOS() error {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

func GetConfig() (*cloud.Config, error) {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			return nil, fmt.Errorf("failed to setup os: %w", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			return nil, err
		}
		config.ApplyEnvironment()
		state.config = config
	}
	return state.config, nil
}

// InitState creates the clients and services. ctx is the root context of the
// process; bulk workers and listeners stop when it is cancelled.
func InitState(ctx context.Context) error {
	config, err := GetConfig()
	if err != nil {
		return err
	}

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	var generator cloud.ContentGenerator
	if m, ok := cloudClients.AgentModels[config.Embedding.AnalysisModel]; ok {
		generator = m
	} else {
		slog.Warn("analysis model not configured, /analysis is disabled", "model", config.Embedding.AnalysisModel)
	}
	state.embeddings = services.NewEmbeddingClient(config.Embedding, cloudClients.Credentials, generator)

	if state.store, err = services.NewVectorStore(config.VectorStore, cloudClients.QdrantClient); err != nil {
		return err
	}
	if q, ok := state.store.(*services.QdrantVectorStore); ok {
		if err := q.EnsureCollection(ctx); err != nil {
			return err
		}
	}

	truncator := services.NewVideoTruncator(config.Media.FFmpegPath, services.NewTempClipStore(config.Media.TempDir), config.Media.ClipSeconds)
	objects := services.StorageObjectReader{Client: cloudClients.StorageClient}
	state.fetcher = services.NewVideoFetcher(objects, config.Media.MaxVideoBytes, config.Media.FetchTimeoutDuration())

	state.ingestion = workflow.NewIngestionWorkflow(state.fetcher, truncator, state.embeddings, state.store, config.Media.ClipSeconds)

	batches, err := workflow.NewBatchStore(config.BatchStore, cloudClients.RedisClient)
	if err != nil {
		return err
	}
	state.bulk = workflow.NewBulkIngestionPipeline(ctx, state.ingestion, batches, workflow.BulkOptionsFromConfig(config.Bulk))

	state.prediction = &services.PredictionService{
		Truncator:   truncator,
		Embedder:    state.embeddings,
		Store:       state.store,
		Predictor:   services.NewMetricPredictor(services.WeightsCanonical),
		Ingestor:    state.ingestion,
		ClipSeconds: config.Media.ClipSeconds,
		TopK:        config.VectorStore.TopK,
	}

	if state.analysis, err = services.NewAnalysisService(truncator, state.embeddings, config.PromptTemplates.AnalysisPrompt, config.Media.ClipSeconds); err != nil {
		return err
	}

	state.search = &services.SearchService{Embedder: state.embeddings, Store: state.store}

	SetupListeners(ctx, config, cloudClients, objects, state.bulk)
	return nil
}
