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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFileNames returns the base and runtime specific configuration file paths
// derived from GCP_CONFIG_PREFIX and GCP_RUNTIME. The runtime defaults to "test".
func ConfigFileNames() (base string, runtime string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}
	env := os.Getenv(EnvConfigRuntime)
	if env == "" {
		env = "test"
	}
	base = prefix + ConfigFileBaseName + ConfigFileExtension
	runtime = prefix + ConfigFileBaseName + ConfigSeparator + env + ConfigFileExtension
	return base, runtime
}

// LoadConfig decodes the base configuration file, then the runtime specific file
// on top of it. Either file may be absent. Values in the runtime file overwrite
// values of the base file; values absent from both keep whatever baseConfig held.
func LoadConfig(baseConfig interface{}) error {
	baseConfigFileName, envConfigFileName := ConfigFileNames()

	for _, name := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(name) {
			slog.Debug("configuration file not found", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Info("loaded configuration file", "file", name)
	}
	return nil
}

// GenerateMultiModalResponse calls a generative model and returns the concatenated
// text of all candidates with any markdown JSON fence removed. Token usage is
// recorded on the supplied counters.
//
// Inputs:
//   - maxAttempts: Total calls made before giving up. Values below 1 mean a single
//     call. Attempts run back to back, so callers facing quota errors should pass 1
//     and schedule their own retries.
//   - retryCounter: Incremented for every attempt after the first.
//
// Outputs:
//   - value: The cleaned model answer.
//   - err: The error of the last attempt, or ctx's error once it is done.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	model ContentGenerator,
	content []*genai.Content,
	maxAttempts int) (value string, err error) {

	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var resp *genai.GenerateContentResponse
	for try := 0; try < maxAttempts; try++ {
		if try > 0 && retryCounter != nil {
			retryCounter.Add(ctx, 1)
		}
		resp, err = model.GenerateContent(ctx, content)
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return "", err
	}

	if resp.UsageMetadata != nil {
		if inputTokenCounter != nil {
			inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		}
		if outputTokenCounter != nil {
			outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
		}
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	value = strings.TrimSpace(sb.String())
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value), nil
}
