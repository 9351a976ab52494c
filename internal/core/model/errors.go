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

package model

import (
	"errors"
	"fmt"
)

// ErrBatchNotFound is returned by batch stores for unknown batch ids.
var ErrBatchNotFound = errors.New("batch not found")

// ValidationError reports a malformed or incomplete request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TranscodeError reports a failure of the external transcoder. It carries the
// tail of the engine's own diagnostic output.
type TranscodeError struct {
	Msg string
	Err error
}

func (e *TranscodeError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("transcode failed: %v", e.Err)
	}
	return fmt.Sprintf("transcode failed: %v: %s", e.Err, e.Msg)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// EmbeddingServiceError reports a failed call to the embedding or generative model.
// StatusCode is zero for transport failures.
type EmbeddingServiceError struct {
	StatusCode int
	Msg        string
	Err        error
}

func (e *EmbeddingServiceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("embedding service: status %d: %s: %v", e.StatusCode, e.Msg, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("embedding service: status %d: %s", e.StatusCode, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("embedding service: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("embedding service: %s", e.Msg)
}

func (e *EmbeddingServiceError) Unwrap() error {
	return e.Err
}

// VectorStoreError reports a failed vector store operation.
type VectorStoreError struct {
	Op  string // "upsert" or "query"
	Err error
}

func (e *VectorStoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *VectorStoreError) Unwrap() error {
	return e.Err
}

// ExhaustedRetryError is recorded against a bulk item that failed every attempt.
type ExhaustedRetryError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetryError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetryError) Unwrap() error {
	return e.Err
}

// FetchError reports a failed download of a source video or bulk file. StatusCode
// is zero for transport and storage failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
