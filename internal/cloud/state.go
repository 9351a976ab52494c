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

package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// ServiceClients holds every long lived client of the service. It is created once
// at start up and shared by the handlers, the bulk worker and the listeners.
type ServiceClients struct {
	StorageClient   *storage.Client                         // GCS, for gs:// videos and bulk files.
	PubsubClient    *pubsub.Client                          // Nil when no subscription is configured.
	GenAIClient     *genai.Client                           // Nil when no agent model is configured.
	Credentials     CredentialProvider                      // Bearer tokens for the embedding endpoint.
	QdrantClient    *qdrant.Client                          // Nil unless vector_store.provider is qdrant.
	RedisClient     *redis.Client                           // Nil unless batch_store.provider is redis.
	PubSubListeners map[string]*PubSubListener              // Keyed by the topic_subscriptions key.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Keyed by the agent_models key.
}

// Close releases every client that holds a connection.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.QdrantClient != nil {
		_ = c.QdrantClient.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
}

func clientOptions(config *Config) []option.ClientOption {
	if config.Application.CredentialPath == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(config.Application.CredentialPath)}
}

// NewCloudServiceClients creates the clients required by config.
//
// Logic Flow:
//  1. Create the Cloud Storage client. When topic subscriptions are configured,
//     create the Pub/Sub client and one listener per subscription.
//  2. When agent models are configured, create the genai client on Vertex AI and
//     wrap each model in a QuotaAwareGenerativeAIModel.
//  3. Create the qdrant client when the vector store provider is qdrant.
//  4. Create and ping the redis client when the batch store provider is redis.
//
// Any failure closes what was already created and returns the error.
//
// Inputs:
//   - ctx: Used for client creation and the redis ping.
//   - config: The loaded application configuration.
//
// Outputs:
//   - *ServiceClients: The container; release it with Close.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	opts := clientOptions(config)

	provider, creds, err := NewGoogleCredentialProvider(config.Application.CredentialPath, config.Embedding.TokenEarlyExpiry())
	if err != nil {
		return nil, err
	}
	cloud.Credentials = provider

	if cloud.StorageClient, err = storage.NewClient(ctx, opts...); err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	if len(config.TopicSubscriptions) > 0 {
		if cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId, opts...); err != nil {
			cloud.Close()
			return nil, fmt.Errorf("failed to create pubsub client: %w", err)
		}
		for subKey, values := range config.TopicSubscriptions {
			listener, err := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
			if err != nil {
				cloud.Close()
				return nil, err
			}
			cloud.PubSubListeners[subKey] = listener
		}
	}

	if len(config.AgentModels) > 0 {
		cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:     config.Application.GoogleProjectId,
			Location:    config.Application.GoogleLocation,
			Backend:     genai.BackendVertexAI,
			Credentials: creds,
		})
		if err != nil {
			cloud.Close()
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		for amKey, values := range config.AgentModels {
			slog.Debug("configuring agent model", "key", amKey, "model", values.Model)
			cloud.AgentModels[amKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, cloud.GenAIClient.Models, values.RateLimit)
		}
	}

	if config.VectorStore.Provider == ProviderQdrant {
		cloud.QdrantClient, err = qdrant.NewClient(&qdrant.Config{
			Host:   config.VectorStore.Host,
			Port:   config.VectorStore.Port,
			APIKey: config.VectorStore.APIKey,
			UseTLS: config.VectorStore.UseTLS,
		})
		if err != nil {
			cloud.Close()
			return nil, fmt.Errorf("failed to create qdrant client: %w", err)
		}
	}

	if config.BatchStore.Provider == ProviderRedis {
		cloud.RedisClient = NewRedisClient(config.BatchStore)
		if err = cloud.RedisClient.Ping(ctx).Err(); err != nil {
			cloud.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.BatchStore.Addr, err)
		}
	}

	return cloud, nil
}

// NewRedisClient builds a redis client from the batch store configuration.
func NewRedisClient(cfg BatchStore) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
