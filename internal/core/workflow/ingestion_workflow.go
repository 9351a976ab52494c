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

// Package workflow composes the commands into the pipelines of the service: the
// single video ingestion chain, the bulk ingestion pipeline that drives it for
// every record of a batch, and the Pub/Sub bulk trigger.
//
// Logic Flow (single video):
//  1. FetchVideo downloads the source from an http(s) or gs:// URL.
//  2. TruncateVideo cuts the leading clip and base64 encodes it.
//  3. GenerateEmbedding turns the clip into a 1408 wide vector.
//  4. UpsertVector writes the vector with its metadata under the record's namespace.
//
// Bulk batches run the same chain for each record, one after the other, in a
// background worker whose progress is kept in a BatchStore.
package workflow

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/commands"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// IngestionWorkflow fetches, truncates, embeds and indexes one video.
type IngestionWorkflow struct {
	cor.BaseCommand
	fetcher     commands.Fetcher
	truncator   services.Truncator
	embedder    services.Embedder
	store       services.VectorStore
	clipSeconds int
	chain       cor.Chain
}

func NewIngestionWorkflow(
	fetcher commands.Fetcher,
	truncator services.Truncator,
	embedder services.Embedder,
	store services.VectorStore,
	clipSeconds int) *IngestionWorkflow {

	out := &IngestionWorkflow{
		BaseCommand: *cor.NewBaseCommand("ingestion-workflow"),
		fetcher:     fetcher,
		truncator:   truncator,
		embedder:    embedder,
		store:       store,
		clipSeconds: clipSeconds,
	}
	out.initializeChain()
	return out
}

func (w *IngestionWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewFetchVideo("video-fetch", w.fetcher))
	out.AddCommand(commands.NewTruncateVideo("video-truncate", w.truncator, w.clipSeconds))
	out.AddCommand(commands.NewGenerateEmbedding("embedding-generate", w.embedder))
	out.AddCommand(commands.NewUpsertVector("vector-upsert", w.store))
	w.chain = out
}

// Execute runs the chain. The context must hold the *commands.IngestionRequest
// under CtxIn and commands.IngestionRequestParam.
func (w *IngestionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Ingest runs the chain once for videoURL on a fresh context.
func (w *IngestionWorkflow) Ingest(ctx context.Context, videoURL string, metadata model.MetadataRecord) (*model.UpsertAck, error) {
	req := &commands.IngestionRequest{VideoURL: videoURL, Metadata: metadata}
	chCtx := cor.NewContextWith(ctx, req)
	chCtx.Add(commands.IngestionRequestParam, req)

	w.Execute(chCtx)
	if err := chCtx.FirstError(); err != nil {
		return nil, err
	}
	ack, ok := chCtx.Get(cor.CtxIn).(*model.UpsertAck)
	if !ok {
		return nil, fmt.Errorf("ingestion finished without an acknowledgment")
	}
	return ack, nil
}
