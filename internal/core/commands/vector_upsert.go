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

package commands

import (
	"errors"
	"log/slog"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// UpsertVector writes the embedding on its input to the vector store, using the
// metadata of the request stored under IngestionRequestParam. It outputs the
// store's *model.UpsertAck.
type UpsertVector struct {
	cor.BaseCommand
	store services.VectorStore
}

func NewUpsertVector(name string, store services.VectorStore) *UpsertVector {
	return &UpsertVector{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

func (c *UpsertVector) IsExecutable(context cor.Context) bool {
	_, ok := GetIngestionRequest(context)
	return ok && c.BaseCommand.IsExecutable(context)
}

func (c *UpsertVector) Execute(context cor.Context) {
	vector, ok := input[model.EmbeddingVector](&c.BaseCommand, context)
	if !ok {
		return
	}
	req, ok := GetIngestionRequest(context)
	if !ok {
		c.Fail(context, errors.New("no ingestion request on context"))
		return
	}
	entry := model.NewIndexEntry(vector, req.Metadata)
	ack, err := c.store.Upsert(context.GetContext(), entry)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "indexed video", "url", req.VideoURL, "id", ack.ID, "namespace", ack.Namespace)
	c.Succeed(context, ack)
}
