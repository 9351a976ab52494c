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
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// DefaultClipSeconds bounds a clip when the caller does not ask for a duration.
const DefaultClipSeconds = 10

// stderrTail is how much of the transcoder's diagnostics is kept on failure.
const stderrTail = 1024

// VideoTruncator cuts the leading segment of a video with ffmpeg and returns it
// base64 encoded, ready for the embedding request.
type VideoTruncator struct {
	FFmpegPath     string
	Clips          *TempClipStore
	DefaultSeconds int
}

func NewVideoTruncator(ffmpegPath string, clips *TempClipStore, defaultSeconds int) *VideoTruncator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if defaultSeconds <= 0 {
		defaultSeconds = DefaultClipSeconds
	}
	return &VideoTruncator{FFmpegPath: ffmpegPath, Clips: clips, DefaultSeconds: defaultSeconds}
}

// Args returns the ffmpeg arguments for one truncation.
func (t *VideoTruncator) Args(paths ClipPaths, seconds int) []string {
	return []string{
		"-y", "-hide_banner",
		"-ss", "0",
		"-i", paths.Input,
		"-t", strconv.Itoa(seconds),
		"-f", "mp4",
		paths.Output,
	}
}

// Truncate keeps at most seconds of buffer and returns the clip base64 encoded.
//
// Logic Flow:
//  1. Reject an empty buffer and fall back to DefaultSeconds for non positive durations.
//  2. Acquire a unique input/output path pair from the TempClipStore. The pair is
//     released on every return path, so no staging file outlives the call.
//  3. Stage the buffer in the input file.
//  4. Run `ffmpeg -ss 0 -i <input> -t <seconds> -f mp4 <output>`, bound to ctx.
//  5. Read the output clip and encode it.
//
// Inputs:
//   - ctx: Cancels the ffmpeg process.
//   - buffer: The raw source video.
//   - seconds: The clip length.
//
// Outputs:
//   - string: The base64 encoded mp4 clip.
//   - error: A ValidationError for an empty buffer, otherwise a TranscodeError
//     carrying the tail of ffmpeg's stderr.
func (t *VideoTruncator) Truncate(ctx context.Context, buffer []byte, seconds int) (string, error) {
	if len(buffer) == 0 {
		return "", model.NewValidationError("video buffer is empty")
	}
	if seconds <= 0 {
		seconds = t.DefaultSeconds
	}

	paths, err := t.Clips.Acquire()
	if err != nil {
		return "", &model.TranscodeError{Err: err}
	}
	defer t.Clips.Release(paths)

	if err := os.WriteFile(paths.Input, buffer, 0o600); err != nil {
		return "", &model.TranscodeError{Msg: "failed to stage input", Err: err}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.FFmpegPath, t.Args(paths, seconds)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &model.TranscodeError{Msg: tail(stderr.String(), stderrTail), Err: fmt.Errorf("error running ffmpeg: %w", err)}
	}

	out, err := os.ReadFile(paths.Output)
	if err != nil {
		return "", &model.TranscodeError{Msg: "ffmpeg produced no output", Err: err}
	}
	if len(out) == 0 {
		return "", &model.TranscodeError{Msg: "ffmpeg produced an empty clip", Err: fmt.Errorf("empty output")}
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
