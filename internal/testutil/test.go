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

// Package test holds the fixtures shared by the package tests: the test
// configuration, canned notifications and payloads, and small fakes.
package test

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

type StateManager struct {
	once   sync.Once
	config *cloud.Config
}

var state = &StateManager{}

// ModuleRoot returns the directory holding go.mod, independent of the package
// directory a test runs in.
func ModuleRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, filepath.Join(ModuleRoot(), "configs"))
	if err != nil {
		return err
	}
	// Loads .env.test.toml over .env.toml.
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once per test binary.
func GetConfig() *cloud.Config {
	state.once.Do(func() {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		state.config = config
	})
	return state.config
}

func GetTestBulkUploadMessageText() string {
	return `{
  "kind": "storage#object",
  "id": "ugc_bulk_uploads/campaign-2024-10.json/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/ugc_bulk_uploads/o/campaign-2024-10.json",
  "name": "campaign-2024-10.json",
  "bucket": "ugc_bulk_uploads",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "application/json",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "size": "1024",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/ugc_bulk_uploads/o/campaign-2024-10.json?generation=1728615848664286&alt=media",
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`
}

func GetTestBulkFileText() string {
	return `{
  "data": [
    {"videoUrl": "https://cdn.example.com/ads/a.mp4", "objective": "sales", "resultName": "Purchases", "clicks": 120, "cpc": "0.45"},
    {"videoUrl": "gs://ugc_videos/b.mp4", "objective": "awareness", "clicks": 80}
  ]
}`
}

// Vector returns a valid embedding whose components are all v.
func Vector(v float32) model.EmbeddingVector {
	out := make(model.EmbeddingVector, model.EmbeddingDimension)
	for i := range out {
		out[i] = v
	}
	return out
}

// MP4Header is the start of an ISO base media file, enough for MIME sniffing.
func MP4Header() []byte {
	return []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}
}

// WriteFakeFFmpeg writes a shell script standing in for ffmpeg. It copies the
// file after -i to the last argument, or exits with failure after printing to
// stderr when fail is set. Tests using it need a POSIX shell.
func WriteFakeFFmpeg(t *testing.T, fail bool) string {
	t.Helper()
	script := `#!/bin/sh
in=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
  out="$a"
done
cp "$in" "$out"
`
	if fail {
		script = `#!/bin/sh
echo "moov atom not found" >&2
exit 1
`
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake ffmpeg: %v", err)
	}
	return path
}

// NoWait is a wait function that returns at once unless ctx is done. It records
// the requested durations.
type NoWait struct {
	mu    sync.Mutex
	Waits []time.Duration
}

func (n *NoWait) Wait(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.Waits = append(n.Waits, d)
	n.mu.Unlock()
	return ctx.Err()
}

// Recorded returns a copy of the recorded waits.
func (n *NoWait) Recorded() []time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]time.Duration(nil), n.Waits...)
}
