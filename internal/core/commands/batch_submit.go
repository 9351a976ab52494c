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
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// BatchSubmitter accepts a batch for background ingestion and returns its id.
type BatchSubmitter interface {
	SubmitRecords(ctx context.Context, records []model.BulkRecord) (string, error)
}

// BatchSubmit hands the *model.BulkBatch on its input to the bulk pipeline and
// outputs the batch id.
type BatchSubmit struct {
	cor.BaseCommand
	submitter BatchSubmitter
}

func NewBatchSubmit(name string, submitter BatchSubmitter) *BatchSubmit {
	return &BatchSubmit{BaseCommand: *cor.NewBaseCommand(name), submitter: submitter}
}

func (c *BatchSubmit) Execute(context cor.Context) {
	batch, ok := input[*model.BulkBatch](&c.BaseCommand, context)
	if !ok {
		return
	}
	id, err := c.submitter.SubmitRecords(context.GetContext(), batch.Data)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "bulk batch submitted", "batchId", id, "records", len(batch.Data))
	c.Succeed(context, id)
}
