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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// PineconeAPIVersion is sent with every data plane request.
const PineconeAPIVersion = "2024-07"

type pineconeUpsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace"`
}

type pineconeVector struct {
	ID       string                `json:"id"`
	Values   model.EmbeddingVector `json:"values"`
	Metadata model.MetadataRecord  `json:"metadata,omitempty"`
}

type pineconeUpsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

type pineconeQueryRequest struct {
	Vector          model.EmbeddingVector `json:"vector"`
	TopK            int                   `json:"topK"`
	IncludeMetadata bool                  `json:"includeMetadata"`
	Namespace       string                `json:"namespace"`
}

type pineconeQueryResponse struct {
	Namespace string        `json:"namespace"`
	Matches   []model.Match `json:"matches"`
}

// PineconeVectorStore talks to the data plane of one Pinecone index.
type PineconeVectorStore struct {
	Host       string
	APIKey     string
	TopK       int
	HTTPClient *http.Client
}

func NewPineconeVectorStore(cfg cloud.VectorStore) *PineconeVectorStore {
	host := cfg.IndexHost
	if host != "" && !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &PineconeVectorStore{
		Host:       strings.TrimSuffix(host, "/"),
		APIKey:     cfg.APIKey,
		TopK:       cfg.TopK,
		HTTPClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (p *PineconeVectorStore) Upsert(ctx context.Context, entry *model.IndexEntry) (*model.UpsertAck, error) {
	ns, err := checkEntry(entry)
	if err != nil {
		return nil, err
	}
	req := pineconeUpsertRequest{
		Vectors:   []pineconeVector{{ID: entry.ID, Values: entry.Vector, Metadata: compactMetadata(entry.Metadata)}},
		Namespace: ns,
	}
	out := &pineconeUpsertResponse{}
	if err := p.post(ctx, "/vectors/upsert", req, out); err != nil {
		return nil, &model.VectorStoreError{Op: "upsert", Err: err}
	}
	return &model.UpsertAck{ID: entry.ID, Namespace: ns, UpsertedCount: out.UpsertedCount, Status: "ok"}, nil
}

func (p *PineconeVectorStore) Query(ctx context.Context, vector model.EmbeddingVector, namespace string, topK int) (*model.QueryResult, error) {
	if topK <= 0 {
		topK = p.TopK
	}
	topK, err := checkQuery(vector, namespace, topK)
	if err != nil {
		return nil, err
	}
	req := pineconeQueryRequest{Vector: vector, TopK: topK, IncludeMetadata: true, Namespace: namespace}
	out := &pineconeQueryResponse{}
	if err := p.post(ctx, "/query", req, out); err != nil {
		return nil, &model.VectorStoreError{Op: "query", Err: err}
	}
	if out.Matches == nil {
		out.Matches = []model.Match{}
	}
	return &model.QueryResult{Namespace: namespace, Matches: out.Matches}, nil
}

func (p *PineconeVectorStore) post(ctx context.Context, path string, body any, out any) error {
	if p.Host == "" {
		return fmt.Errorf("pinecone index host is not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Host+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-API-Version", PineconeAPIVersion)

	res, err := p.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return fmt.Errorf("%s returned %d: %s", path, res.StatusCode, bytes.TrimSpace(detail))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// compactMetadata drops null values, which the index rejects.
func compactMetadata(m model.MetadataRecord) model.MetadataRecord {
	out := make(model.MetadataRecord, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
