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

package services

import (
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// Weights are applied to the first three matches in rank order.
type Weights [3]float64

var (
	// WeightsCanonical is the default rank weighting.
	WeightsCanonical = Weights{0.5, 0.3, 0.2}
	// WeightsScaled is WeightsCanonical times ten.
	WeightsScaled = Weights{5, 3, 2}
)

// Metadata keys of the performance metrics stored with every indexed video.
const (
	FieldClicks        = "clicks"
	FieldCostPerResult = "costPerResult"
	FieldCpc           = "cpc"
	FieldCpm           = "cpm"
	FieldCtr           = "ctr"
	FieldImpressions   = "impressions"
	FieldPurchaseROAS  = "purchaseROAS"
	FieldReach         = "reach"
	FieldResults       = "results"
)

// MetricPredictor estimates the metrics of a new video from its nearest neighbours.
type MetricPredictor struct {
	Weights Weights
}

func NewMetricPredictor(weights Weights) *MetricPredictor {
	return &MetricPredictor{Weights: weights}
}

// Predict weights each metric of the top three matches. A metric missing or
// non-numeric in any of them, or a result with fewer than three matches, yields
// the unavailable marker for that metric.
func (p *MetricPredictor) Predict(result *model.QueryResult) *model.MetricPrediction {
	var matches []model.Match
	if result != nil {
		matches = result.Matches
	}
	weigh := func(field string) model.MetricValue {
		if len(matches) < len(p.Weights) {
			return model.MetricValue{}
		}
		sum := 0.0
		for i, w := range p.Weights {
			v, ok := matches[i].Metadata.Number(field)
			if !ok {
				return model.MetricValue{}
			}
			sum += w * v
		}
		return model.Metric(sum)
	}

	out := &model.MetricPrediction{
		Clicks:        weigh(FieldClicks),
		CostPerResult: weigh(FieldCostPerResult),
		Cpc:           weigh(FieldCpc),
		Cpm:           weigh(FieldCpm),
		Ctr:           weigh(FieldCtr),
		Impressions:   weigh(FieldImpressions),
		PurchaseROAS:  weigh(FieldPurchaseROAS),
		Reach:         weigh(FieldReach),
		Results:       weigh(FieldResults),
		ResultName:    model.Unavailable,
	}
	if len(matches) > 0 {
		if name := matches[0].Metadata.ResultName(); name != "" {
			out.ResultName = name
		}
	}
	return out
}
