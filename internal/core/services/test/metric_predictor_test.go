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

package services_test

import (
	"encoding/json"
	"testing"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeMatches() *model.QueryResult {
	return &model.QueryResult{Namespace: "sales", Matches: []model.Match{
		{ID: "1", Score: 0.9, Metadata: model.MetadataRecord{"clicks": 10.0, "cpc": "1.5", "resultName": "Purchases", "reach": 0.0}},
		{ID: "2", Score: 0.8, Metadata: model.MetadataRecord{"clicks": 20.0, "cpc": 2.0, "reach": 0.0}},
		{ID: "3", Score: 0.7, Metadata: model.MetadataRecord{"clicks": 30.0, "reach": 0.0}},
	}}
}

func TestPredictCanonicalWeights(t *testing.T) {
	out := services.NewMetricPredictor(services.WeightsCanonical).Predict(threeMatches())

	require.True(t, out.Clicks.Available)
	assert.InDelta(t, 17.0, out.Clicks.Value, 1e-9)
	assert.Equal(t, "Purchases", out.ResultName)

	// Missing in match 3.
	assert.False(t, out.Cpc.Available)
	// Never recorded.
	assert.False(t, out.Ctr.Available)
	// A zero sum is still a number.
	require.True(t, out.Reach.Available)
	assert.Equal(t, 0.0, out.Reach.Value)
}

func TestPredictScaledWeights(t *testing.T) {
	out := services.NewMetricPredictor(services.WeightsScaled).Predict(threeMatches())
	require.True(t, out.Clicks.Available)
	assert.InDelta(t, 170.0, out.Clicks.Value, 1e-9)
}

func TestPredictTooFewMatches(t *testing.T) {
	result := threeMatches()
	result.Matches = result.Matches[:2]
	out := services.NewMetricPredictor(services.WeightsCanonical).Predict(result)

	assert.False(t, out.Clicks.Available)
	assert.Equal(t, "Purchases", out.ResultName)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, model.Unavailable, decoded["Clicks"])
	assert.Equal(t, model.Unavailable, decoded["PurchaseROAS"])
}

func TestPredictEmptyResult(t *testing.T) {
	out := services.NewMetricPredictor(services.WeightsCanonical).Predict(&model.QueryResult{})
	assert.Equal(t, model.Unavailable, out.ResultName)
	assert.False(t, out.Impressions.Available)

	out = services.NewMetricPredictor(services.WeightsCanonical).Predict(nil)
	assert.Equal(t, model.Unavailable, out.ResultName)
}

func TestPredictionJSON(t *testing.T) {
	out := services.NewMetricPredictor(services.WeightsCanonical).Predict(threeMatches())
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.InDelta(t, 17.0, decoded["Clicks"], 1e-9)
	assert.Equal(t, model.Unavailable, decoded["Cpc"])
	assert.Equal(t, 0.0, decoded["Reach"])
	assert.Equal(t, "Purchases", decoded["ResultName"])
}
