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
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// BulkTriggerToGCSObject parses the Cloud Storage notification on its input and
// outputs the *cloud.GCSObject of the uploaded bulk file. Only .json objects are
// accepted.
type BulkTriggerToGCSObject struct {
	cor.BaseCommand
}

func NewBulkTriggerToGCSObject(name string) *BulkTriggerToGCSObject {
	return &BulkTriggerToGCSObject{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *BulkTriggerToGCSObject) Execute(context cor.Context) {
	in, ok := input[string](&c.BaseCommand, context)
	if !ok {
		return
	}
	var out cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(in), &out); err != nil {
		c.Fail(context, fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}
	if out.Bucket == "" || out.Name == "" {
		c.Fail(context, model.NewValidationError("notification does not name an object"))
		return
	}
	if !strings.HasSuffix(strings.ToLower(out.Name), ".json") {
		c.Fail(context, model.NewValidationError("bulk file %s is not a .json file", out.Name))
		return
	}

	msg := &cloud.GCSObject{Bucket: out.Bucket, Name: out.Name, MIMEType: out.ContentType}
	context.Add(cloud.GetGCSObjectName(), msg)
	c.Succeed(context, msg)
}
