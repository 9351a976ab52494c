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

// Package model defines the core data structures for the application.
// This file, `embedding.go`, holds the types that flow through the ingestion
// pipeline: the source video, the embedding vector produced for it, the metadata
// carried alongside it and the entries written to or read from the vector index.
package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// EmbeddingDimension is the fixed vector length of the multimodal embedding model.
const EmbeddingDimension = 1408

// Well known metadata keys.
const (
	MetadataObjective  = "objective"
	MetadataResultName = "resultName"
	MetadataVideoURL   = "videoUrl"
)

// SourceVideo is a raw video buffer supplied by a caller. It is read-only to the
// pipeline and never persisted beyond the request lifetime.
type SourceVideo struct {
	Data     []byte // The raw bytes of the video.
	MIMEType string // The MIME type, e.g. "video/mp4".
}

// EmbeddingVector is the ordered sequence of components produced by the embedding model.
type EmbeddingVector []float32

// Validate checks the vector against the model's fixed dimension.
func (v EmbeddingVector) Validate() error {
	if len(v) != EmbeddingDimension {
		return fmt.Errorf("embedding has %d components, expected %d", len(v), EmbeddingDimension)
	}
	return nil
}

// MetadataRecord is the free-form metadata carried by an index entry. Values are
// the scalars produced by JSON decoding (string, float64, bool) or anything the
// vector store hands back.
type MetadataRecord map[string]any

// String returns the value of key as a string, or "" when missing.
func (m MetadataRecord) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Objective returns the namespace this record belongs to.
func (m MetadataRecord) Objective() string {
	return m.String(MetadataObjective)
}

// ResultName returns the record's result name.
func (m MetadataRecord) ResultName() string {
	return m.String(MetadataResultName)
}

// Number returns the numeric value of key. Numeric strings are accepted since
// bulk files exported from spreadsheets frequently quote their numbers.
func (m MetadataRecord) Number(key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// WithObjective returns a copy of the record with the objective set.
func (m MetadataRecord) WithObjective(objective string) MetadataRecord {
	out := make(MetadataRecord, len(m)+1)
	maps.Copy(out, m)
	out[MetadataObjective] = objective
	return out
}

// IndexEntry is the unit persisted in the vector store. Entries are immutable
// once written and the ID is never reused.
type IndexEntry struct {
	ID       string          `json:"id"`
	Vector   EmbeddingVector `json:"values"`
	Metadata MetadataRecord  `json:"metadata"`
}

// NewIndexEntry builds an entry with a freshly generated UUID v4.
func NewIndexEntry(vector EmbeddingVector, metadata MetadataRecord) *IndexEntry {
	return &IndexEntry{
		ID:       uuid.NewString(),
		Vector:   vector,
		Metadata: metadata,
	}
}

// Match is a single ranked result of a similarity query.
type Match struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata MetadataRecord `json:"metadata,omitempty"`
}

// QueryResult is the ordered (best first) response of a similarity query. The
// order is authoritative and never re-sorted.
type QueryResult struct {
	Namespace string  `json:"namespace"`
	Matches   []Match `json:"matches"`
}

// UpsertAck is the vector store's acknowledgment of a write.
type UpsertAck struct {
	ID            string `json:"id"`
	Namespace     string `json:"namespace"`
	UpsertedCount int    `json:"upsertedCount"`
	Status        string `json:"status,omitempty"`
}
