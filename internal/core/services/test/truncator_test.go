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

// Package services_test exercises the services against fakes and httptest
// servers; none of the tests needs Google Cloud access.
package services_test

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
	test "github.com/jaycherian/gcp-go-predictive-analysis/internal/testutil"
	"github.com/zeebo/assert"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg needs a POSIX shell")
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTempClipStoreAcquire(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clips")
	store := services.NewTempClipStore(dir)

	a, err := store.Acquire()
	assert.NoError(t, err)
	b, err := store.Acquire()
	assert.NoError(t, err)

	assert.That(t, a.Input != b.Input)
	assert.That(t, strings.HasPrefix(filepath.Base(a.Input), "input_"))
	assert.That(t, strings.HasPrefix(filepath.Base(a.Output), "output_"))
	assert.Equal(t, filepath.Ext(a.Output), ".mp4")
	assert.Equal(t, filepath.Dir(a.Input), dir)

	// Release of paths that were never written is a no-op.
	store.Release(a)
	assert.NoError(t, os.WriteFile(b.Input, []byte("x"), 0o600))
	store.Release(b)
	assert.Equal(t, len(dirEntries(t, dir)), 0)
}

func TestTruncateSuccess(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	truncator := services.NewVideoTruncator(test.WriteFakeFFmpeg(t, false), services.NewTempClipStore(dir), 10)

	video := append(test.MP4Header(), []byte("rest of the video")...)
	clip, err := truncator.Truncate(context.Background(), video, 0)
	assert.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(clip)
	assert.NoError(t, err)
	assert.DeepEqual(t, decoded, video)
	assert.Equal(t, len(dirEntries(t, dir)), 0)
}

func TestTruncateFailureLeavesNoTempFiles(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	truncator := services.NewVideoTruncator(test.WriteFakeFFmpeg(t, true), services.NewTempClipStore(dir), 10)

	_, err := truncator.Truncate(context.Background(), []byte("not a video"), 10)
	assert.Error(t, err)

	var terr *model.TranscodeError
	assert.That(t, errors.As(err, &terr))
	assert.That(t, strings.Contains(terr.Msg, "moov atom not found"))
	assert.Equal(t, len(dirEntries(t, dir)), 0)
}

func TestTruncateMissingBinary(t *testing.T) {
	dir := t.TempDir()
	truncator := services.NewVideoTruncator(filepath.Join(dir, "no-such-ffmpeg"), services.NewTempClipStore(dir), 10)

	_, err := truncator.Truncate(context.Background(), []byte("data"), 10)
	var terr *model.TranscodeError
	assert.That(t, errors.As(err, &terr))
	assert.Equal(t, len(dirEntries(t, dir)), 0)
}

func TestTruncateEmptyBuffer(t *testing.T) {
	truncator := services.NewVideoTruncator("ffmpeg", services.NewTempClipStore(t.TempDir()), 10)
	_, err := truncator.Truncate(context.Background(), nil, 10)
	var verr *model.ValidationError
	assert.That(t, errors.As(err, &verr))
}

func TestTruncateArgs(t *testing.T) {
	truncator := services.NewVideoTruncator("", nil, 0)
	assert.Equal(t, truncator.FFmpegPath, "ffmpeg")
	assert.Equal(t, truncator.DefaultSeconds, services.DefaultClipSeconds)

	args := truncator.Args(services.ClipPaths{Input: "in.mp4", Output: "out.mp4"}, 7)
	assert.Equal(t, strings.Join(args, " "), "-y -hide_banner -ss 0 -i in.mp4 -t 7 -f mp4 out.mp4")
}
