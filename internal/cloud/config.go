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

// Package cloud provides the configuration model and the Google Cloud service
// clients used by the predictive analysis service. This file defines the
// configuration structure that is loaded from the hierarchical TOML files
// (see LoadConfig) and then overridden by a small set of environment variables
// that carry secrets.
package cloud

import (
	"os"
	"strconv"
	"time"

	"google.golang.org/genai"
)

// Environment variables that override values loaded from TOML.
const (
	EnvCredentialPath = "GOOGLE_IMAGEN_CREDENTIAL_PATH" // Path to the service account key used for Vertex AI.
	EnvVectorStoreKey = "PINECONE_API_KEY"              // API key of the vector store.
	EnvPersistenceURI = "MONGO_URI"                     // Persistence connection string (carried, unused by the pipeline).
	EnvRedisAddr      = "REDIS_ADDR"                    // Address of the redis batch store.
	EnvPort           = "PORT"                          // HTTP listen port.
)

// Vector store and batch store providers.
const (
	ProviderPinecone = "pinecone"
	ProviderQdrant   = "qdrant"
	ProviderMemory   = "memory"
	ProviderRedis    = "redis"
)

// DefaultSafetySettings relaxes the content filters for ad creative analysis, where
// product footage routinely trips the default thresholds.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// ServiceDiscovery configures DNS SRV resolution of an outbound base URL.
type ServiceDiscovery struct {
	UseSRV              bool   `toml:"use_srv"`               // Resolve the base URL through an SRV lookup.
	ServiceDiscEndpoint string `toml:"service_disc_endpoint"` // The SRV name to resolve, e.g. "_embedding._tcp.svc.local".
}

// EmbeddingService configures the Vertex AI prediction endpoint.
type EmbeddingService struct {
	Endpoint                string           `toml:"endpoint"`                   // Base URL, e.g. https://us-central1-aiplatform.googleapis.com/v1/projects/p/locations/l
	EmbeddingModel          string           `toml:"embedding_model"`            // Publisher model used for :predict.
	AnalysisModel           string           `toml:"analysis_model"`             // Key into AgentModels used for video analysis.
	TimeoutSeconds          int              `toml:"timeout_seconds"`            // Per request ceiling; media inference is slow.
	TokenEarlyExpirySeconds int              `toml:"token_early_expiry_seconds"` // Refresh cached tokens this long before they expire.
	Discovery               ServiceDiscovery `toml:"srv"`
}

// Timeout returns the request ceiling as a duration.
func (e EmbeddingService) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// TokenEarlyExpiry returns the token refresh margin as a duration.
func (e EmbeddingService) TokenEarlyExpiry() time.Duration {
	return time.Duration(e.TokenEarlyExpirySeconds) * time.Second
}

// VectorStore configures the similarity index.
type VectorStore struct {
	Provider       string `toml:"provider"`        // "pinecone" or "qdrant".
	IndexName      string `toml:"index_name"`      // Index (pinecone) or collection (qdrant) name.
	IndexHost      string `toml:"index_host"`      // Pinecone data plane host, e.g. https://video-analysis-db-xxxx.svc.pinecone.io
	APIKey         string `toml:"api_key"`         // API key for either provider.
	Host           string `toml:"host"`            // Qdrant gRPC host.
	Port           int    `toml:"port"`            // Qdrant gRPC port.
	UseTLS         bool   `toml:"use_tls"`         // Qdrant TLS.
	TopK           int    `toml:"top_k"`           // Number of neighbours returned by queries.
	TimeoutSeconds int    `toml:"timeout_seconds"` // Per request ceiling.
}

// Timeout returns the request ceiling as a duration.
func (v VectorStore) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// Media configures the transcoder and the temporary clip store.
type Media struct {
	FFmpegPath    string `toml:"ffmpeg_path"`    // Path to the ffmpeg executable.
	TempDir       string `toml:"temp_dir"`       // Directory for staging clips, defaults to os.TempDir().
	ClipSeconds   int    `toml:"clip_seconds"`   // Default truncation bound.
	MaxVideoBytes int64  `toml:"max_video_bytes"` // Upper bound on fetched or uploaded videos.
	FetchTimeout  int    `toml:"fetch_timeout_seconds"`
}

// FetchTimeoutDuration returns the remote fetch ceiling as a duration.
func (m Media) FetchTimeoutDuration() time.Duration {
	return time.Duration(m.FetchTimeout) * time.Second
}

// BulkIngestion configures the pacing and retry policy of bulk batches.
type BulkIngestion struct {
	MaxAttempts         int `toml:"max_attempts"`          // Attempts per item, including the first.
	RetryDelaySeconds   int `toml:"retry_delay_seconds"`   // Fixed delay between attempts of the same item.
	ItemIntervalSeconds int `toml:"item_interval_seconds"` // Fixed delay between consecutive items.
}

// RetryDelay returns the delay between attempts as a duration.
func (b BulkIngestion) RetryDelay() time.Duration {
	return time.Duration(b.RetryDelaySeconds) * time.Second
}

// ItemInterval returns the delay between items as a duration.
func (b BulkIngestion) ItemInterval() time.Duration {
	return time.Duration(b.ItemIntervalSeconds) * time.Second
}

// BatchStore configures where bulk batch status lives.
type BatchStore struct {
	Provider  string `toml:"provider"` // "memory" or "redis".
	Addr      string `toml:"addr"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
	TTLHours  int    `toml:"ttl_hours"`
}

// TTL returns the status retention as a duration.
func (b BatchStore) TTL() time.Duration {
	return time.Duration(b.TTLHours) * time.Hour
}

// PromptTemplates holds the text/template sources used for generative prompts.
type PromptTemplates struct {
	AnalysisPrompt string `toml:"analysis"` // Rendered with {{.Objective}}.
}

// VertexAiLLMModel configures one generative model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"` // Response MIME type, e.g. "application/json".
	RateLimit          int     `toml:"rate_limit"`    // Burst of requests per second.
}

// TopicSubscription configures a Pub/Sub subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Config is the root configuration of the service.
type Config struct {
	Application struct {
		Name             string  `toml:"name"`                    // Service name, used for telemetry.
		GoogleProjectId  string  `toml:"google_project_id"`       // The Google Cloud project ID.
		GoogleLocation   string  `toml:"location"`                // The Google Cloud location.
		CredentialPath   string  `toml:"credential_path"`         // Service account key file, empty for ADC.
		PersistenceURI   string  `toml:"persistence_uri"`         // Carried for parity with deployments, unused.
		TelemetryEnabled bool    `toml:"telemetry_enabled"`       // Export traces and metrics to Google Cloud.
		TraceSampleRatio float64 `toml:"trace_sample_ratio"`      // Fraction of root spans sampled, 0 < r <= 1.
		MetricInterval   int     `toml:"metric_interval_seconds"` // Metric export period.
		LogLevel         string  `toml:"log_level"`               // debug, info, warn or error.
		LogFile          string  `toml:"log_file"`                // Optional copy of the JSON log.
		Port             int     `toml:"port"`                    // HTTP listen port.
	} `toml:"application"`
	Embedding          EmbeddingService             `toml:"embedding"`
	VectorStore        VectorStore                  `toml:"vector_store"`
	Media              Media                        `toml:"media"`
	Bulk               BulkIngestion                `toml:"bulk"`
	BatchStore         BatchStore                   `toml:"batch_store"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by logical name, e.g. "BulkUploadTopic".
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // Keyed by logical name, e.g. "analysis-flash".
}

// NewConfig returns a configuration populated with the service defaults. Values
// read from TOML files replace these.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
	c.Application.Name = "predictive-analysis-service"
	c.Application.GoogleLocation = "us-central1"
	c.Application.Port = 8080
	c.Application.LogLevel = "info"
	c.Application.TraceSampleRatio = 1
	c.Application.MetricInterval = 60
	c.Embedding = EmbeddingService{
		EmbeddingModel:          "multimodalembedding@001",
		AnalysisModel:           "analysis-flash",
		TimeoutSeconds:          1200,
		TokenEarlyExpirySeconds: 300,
	}
	c.VectorStore = VectorStore{
		Provider:       ProviderPinecone,
		IndexName:      "video-analysis-db",
		Port:           6334,
		TopK:           3,
		TimeoutSeconds: 30,
	}
	c.Media = Media{
		FFmpegPath:    "ffmpeg",
		ClipSeconds:   10,
		MaxVideoBytes: 512 << 20,
		FetchTimeout:  300,
	}
	c.Bulk = BulkIngestion{MaxAttempts: 3, RetryDelaySeconds: 10, ItemIntervalSeconds: 10}
	c.BatchStore = BatchStore{Provider: ProviderMemory, KeyPrefix: "bulk-batch:", TTLHours: 72}
	return c
}

// ApplyEnvironment overrides secrets and deployment specific values from the
// process environment.
func (c *Config) ApplyEnvironment() {
	if v := os.Getenv(EnvCredentialPath); v != "" {
		c.Application.CredentialPath = v
	}
	if v := os.Getenv(EnvVectorStoreKey); v != "" {
		c.VectorStore.APIKey = v
	}
	if v := os.Getenv(EnvPersistenceURI); v != "" {
		c.Application.PersistenceURI = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.BatchStore.Addr = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Application.Port = p
		}
	}
}
