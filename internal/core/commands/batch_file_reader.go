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
	"encoding/json"
	"io"
	"log/slog"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// MaxBatchFileBytes bounds the size of a bulk upload file.
const MaxBatchFileBytes = 32 << 20

// BatchFileReader reads the bulk file named by the *cloud.GCSObject on its input
// and outputs the decoded *model.BulkBatch.
type BatchFileReader struct {
	cor.BaseCommand
	objects services.ObjectReader
}

func NewBatchFileReader(name string, objects services.ObjectReader) *BatchFileReader {
	return &BatchFileReader{BaseCommand: *cor.NewBaseCommand(name), objects: objects}
}

func (c *BatchFileReader) Execute(context cor.Context) {
	obj, ok := input[*cloud.GCSObject](&c.BaseCommand, context)
	if !ok {
		return
	}
	reader, _, err := c.objects.NewReader(context.GetContext(), obj.Bucket, obj.Name)
	if err != nil {
		c.Fail(context, &model.FetchError{URL: obj.URL(), Err: err})
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.Warn("failed to close GCS reader", "url", obj.URL(), "error", err)
		}
	}()

	batch, err := DecodeBulkBatch(io.LimitReader(reader, MaxBatchFileBytes))
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "read bulk file", "url", obj.URL(), "records", len(batch.Data))
	c.Succeed(context, batch)
}

// DecodeBulkBatch decodes a {"data":[...]} bulk file.
func DecodeBulkBatch(r io.Reader) (*model.BulkBatch, error) {
	batch := &model.BulkBatch{}
	if err := json.NewDecoder(r).Decode(batch); err != nil {
		return nil, model.NewValidationError("bulk file is not valid JSON: %v", err)
	}
	if len(batch.Data) == 0 {
		return nil, model.NewValidationError("bulk file has no records")
	}
	for i, rec := range batch.Data {
		if rec.VideoURL == "" {
			return nil, model.NewValidationError("record %d has no videoUrl", i)
		}
	}
	return batch, nil
}
