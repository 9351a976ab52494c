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

package model

import (
	"encoding/json"
	"math"
)

// Unavailable is the marker reported for a metric that could not be computed.
const Unavailable = "--"

// MetricValue is a weighted metric estimate. It serializes to a JSON number, or to
// the Unavailable marker when one of the contributing matches lacked the field.
type MetricValue struct {
	Value     float64
	Available bool
}

// Metric returns an available MetricValue, treating NaN and Inf as unavailable.
func Metric(v float64) MetricValue {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MetricValue{}
	}
	return MetricValue{Value: v, Available: true}
}

func (m MetricValue) MarshalJSON() ([]byte, error) {
	if !m.Available {
		return json.Marshal(Unavailable)
	}
	return json.Marshal(m.Value)
}

func (m *MetricValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*m = MetricValue{}
		return nil
	}
	*m = Metric(f)
	return nil
}

// MetricPrediction is the weighted estimate derived from the top ranked matches.
// It is computed per request and never stored.
type MetricPrediction struct {
	Clicks        MetricValue `json:"Clicks"`
	CostPerResult MetricValue `json:"CostPerResult"`
	Cpc           MetricValue `json:"Cpc"`
	Cpm           MetricValue `json:"Cpm"`
	Ctr           MetricValue `json:"Ctr"`
	Impressions   MetricValue `json:"Impressions"`
	PurchaseROAS  MetricValue `json:"PurchaseROAS"`
	Reach         MetricValue `json:"Reach"`
	Results       MetricValue `json:"Results"`
	ResultName    string      `json:"ResultName"`
}

// PredictionResult is returned by the single-video create flow.
type PredictionResult struct {
	Namespace         string            `json:"namespace"`
	Matches           []Match           `json:"matches"`
	MetricPredictions *MetricPrediction `json:"metricPredictions"`
}
