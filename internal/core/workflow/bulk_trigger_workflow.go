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

package workflow

import (
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/commands"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// BulkTriggerWorkflow is attached to the bulk upload subscription. It turns a GCS
// object notification into a submitted bulk batch.
type BulkTriggerWorkflow struct {
	cor.BaseCommand
	objects   services.ObjectReader
	submitter commands.BatchSubmitter
	chain     cor.Chain
}

func NewBulkTriggerWorkflow(objects services.ObjectReader, submitter commands.BatchSubmitter) *BulkTriggerWorkflow {
	out := &BulkTriggerWorkflow{
		BaseCommand: *cor.NewBaseCommand("bulk-trigger-workflow"),
		objects:     objects,
		submitter:   submitter,
	}
	chain := cor.NewBaseChain(out.GetName())
	chain.AddCommand(commands.NewBulkTriggerToGCSObject("bulk-trigger-reader"))
	chain.AddCommand(commands.NewBatchFileReader("batch-file-reader", out.objects))
	chain.AddCommand(commands.NewBatchSubmit("batch-submit", out.submitter))
	out.chain = chain
	return out
}

func (w *BulkTriggerWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}
