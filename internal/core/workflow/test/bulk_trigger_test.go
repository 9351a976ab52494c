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


package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/cor"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-predictive-analysis/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	records []model.BulkRecord
	err     error
}

func (r *recordingSubmitter) SubmitRecords(_ context.Context, records []model.BulkRecord) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.records = records
	return "batch-42", nil
}

func runTrigger(objects *fakeObjects, submitter *recordingSubmitter, message string) cor.Context {
	chainCtx := cor.NewContextWith(ctx, message)
	workflow.NewBulkTriggerWorkflow(objects, submitter).Execute(chainCtx)
	return chainCtx
}

func TestBulkTriggerSubmitsFile(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{"ugc_bulk_uploads/campaign-2024-10.json": test.GetTestBulkFileText()}}
	submitter := &recordingSubmitter{}

	chainCtx := runTrigger(objects, submitter, test.GetTestBulkUploadMessageText())

	require.False(t, chainCtx.HasErrors(), "%v", chainCtx.GetErrors())
	assert.Equal(t, "batch-42", chainCtx.Get(cor.CtxIn))
	require.Len(t, submitter.records, 2)
	assert.Equal(t, "gs://ugc_videos/b.mp4", submitter.records[1].VideoURL)
	assert.Equal(t, "Purchases", submitter.records[0].IngestionMetadata().Objective())
}

func TestBulkTriggerFailures(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{
		"ugc_bulk_uploads/campaign-2024-10.json": `{"data": []}`,
	}}

	chainCtx := runTrigger(objects, &recordingSubmitter{}, test.GetTestBulkUploadMessageText())
	var verr *model.ValidationError
	assert.True(t, errors.As(chainCtx.FirstError(), &verr))

	chainCtx = runTrigger(&fakeObjects{}, &recordingSubmitter{}, test.GetTestBulkUploadMessageText())
	var ferr *model.FetchError
	assert.True(t, errors.As(chainCtx.FirstError(), &ferr))

	notJSON := strings.Replace(test.GetTestBulkUploadMessageText(), `"name": "campaign-2024-10.json"`, `"name": "campaign.csv"`, 1)
	chainCtx = runTrigger(objects, &recordingSubmitter{}, notJSON)
	assert.True(t, errors.As(chainCtx.FirstError(), &verr))

	chainCtx = runTrigger(objects, &recordingSubmitter{}, "not a notification")
	assert.True(t, chainCtx.HasErrors())
}
