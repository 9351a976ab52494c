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

package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/commands"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/workflow"
)

// BulkUploadTopic is the topic_subscriptions key of the bulk file notifications.
const BulkUploadTopic = "BulkUploadTopic"

func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients, objects services.ObjectReader, submitter commands.BatchSubmitter) {
	listener, ok := cloudClients.PubSubListeners[BulkUploadTopic]
	if !ok {
		slog.Info("no bulk upload subscription configured")
		return
	}
	listener.SetCommand(workflow.NewBulkTriggerWorkflow(objects, submitter))
	listener.Listen(ctx)
	slog.Info("listening for bulk uploads", "subscription", config.TopicSubscriptions[BulkUploadTopic].Name)
}
