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

// Package commands holds the cor.Command implementations of the ingestion and bulk
// trigger workflows. Commands read their primary input from CtxIn, write their
// primary output to CtxOut and record failures on the context, never panicking on
// bad input.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// IngestionRequestParam is the context key of the *IngestionRequest being processed.
const IngestionRequestParam = "__INGEST_REQ__"

// IngestionRequest is one video to index, with the metadata stored alongside it.
type IngestionRequest struct {
	VideoURL string
	Metadata model.MetadataRecord
}

// GetIngestionRequest returns the request stored on context, if any.
func GetIngestionRequest(context cor.Context) (*IngestionRequest, bool) {
	req, ok := context.Get(IngestionRequestParam).(*IngestionRequest)
	return req, ok && req != nil
}

// input fetches the command's input as T, recording a type error when absent or
// of the wrong type.
func input[T any](c *cor.BaseCommand, context cor.Context) (T, bool) {
	v, ok := context.Get(c.GetInputParam()).(T)
	if !ok {
		c.Fail(context, fmt.Errorf("%s: unexpected input %T", c.GetName(), context.Get(c.GetInputParam())))
	}
	return v, ok
}
