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


// Package workflow_test contains the tests of the service workflows. This file
// provides the shared setup: TestMain loads the test configuration, initializes
// logging and telemetry once for the package, and the fakes used by the
// individual tests stand in for the Vertex AI endpoint, the vector store and
// Cloud Storage.
package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/telemetry"
	test "github.com/jaycherian/gcp-go-predictive-analysis/internal/testutil"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

var (
	ctx    context.Context // The root context for all tests in the suite.
	config *cloud.Config   // The application configuration loaded from test files.
)

const tName = "cloud.google.com/predictive-analysis/tests/workflow"

var (
	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

func TestMain(m *testing.M) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	config = test.GetConfig()
	if err := telemetry.SetupLogging(config.Application.LogLevel, ""); err != nil {
		panic(err)
	}
	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		panic(err)
	}
	logger.Info("completed test setup")

	exitCode := m.Run()

	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shutdown telemetry", "error", err)
	}
	os.Exit(exitCode)
}

// fakeFetcher serves videos from memory.
type fakeFetcher struct {
	videos map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*model.SourceVideo, error) {
	data, ok := f.videos[rawURL]
	if !ok {
		return nil, &model.FetchError{URL: rawURL, StatusCode: 404}
	}
	return &model.SourceVideo{Data: data, MIMEType: "video/mp4"}, nil
}

type fakeTruncator struct{}

func (fakeTruncator) Truncate(_ context.Context, buffer []byte, _ int) (string, error) {
	if len(buffer) == 0 {
		return "", &model.TranscodeError{Msg: "empty input"}
	}
	return "Y2xpcA==", nil
}

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) (model.EmbeddingVector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return test.Vector(0.25), nil
}

// memoryIndex records upserts.
type memoryIndex struct {
	mu      sync.Mutex
	entries []*model.IndexEntry
}

func (m *memoryIndex) Upsert(_ context.Context, entry *model.IndexEntry) (*model.UpsertAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return &model.UpsertAck{ID: entry.ID, Namespace: entry.Metadata.Objective(), UpsertedCount: 1}, nil
}

func (m *memoryIndex) Query(_ context.Context, _ model.EmbeddingVector, namespace string, _ int) (*model.QueryResult, error) {
	return &model.QueryResult{Namespace: namespace}, nil
}

// fakeObjects serves Cloud Storage objects from memory.
type fakeObjects struct {
	objects map[string]string
}

func (f *fakeObjects) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, string, error) {
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, "", errors.New("storage: object doesn't exist")
	}
	return io.NopCloser(bytes.NewReader([]byte(data))), "application/json", nil
}
