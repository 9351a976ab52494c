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

// Package services holds the business logic of the predictive analysis service:
// video truncation, the embedding and generative model clients, the vector store
// adapters and the metric predictor, plus the retry and discovery helpers used by
// outbound calls.
package services

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ClipPaths is the pair of staging files used by one truncation.
type ClipPaths struct {
	Input  string
	Output string
}

// TempClipStore hands out unique staging paths for the transcoder.
type TempClipStore struct {
	Dir string
}

// NewTempClipStore returns a store rooted at dir, or at os.TempDir() when dir is empty.
func NewTempClipStore(dir string) *TempClipStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TempClipStore{Dir: dir}
}

// Acquire reserves a fresh input/output pair. Nothing is created on disk.
func (s *TempClipStore) Acquire() (ClipPaths, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return ClipPaths{}, fmt.Errorf("failed to prepare temp dir %s: %w", s.Dir, err)
	}
	token := uuid.NewString()
	return ClipPaths{
		Input:  filepath.Join(s.Dir, "input_"+token+".mp4"),
		Output: filepath.Join(s.Dir, "output_"+token+".mp4"),
	}, nil
}

// Release removes whichever of the two files exist. It never fails; removal
// errors are logged.
func (s *TempClipStore) Release(p ClipPaths) {
	for _, path := range []string{p.Input, p.Output} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove temp clip", "path", path, "error", err)
		}
	}
}
