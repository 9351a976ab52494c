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


package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestLogHandlerCloudLoggingFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(telemetry.NewLogHandler(buf, slog.LevelDebug))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	logger.With("component", "bulk").WarnContext(ctx, "bulk item attempt failed", "attempt", 2)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "WARNING", out["severity"])
	assert.Equal(t, "bulk item attempt failed", out["message"])
	assert.Contains(t, out, "timestamp")
	assert.Equal(t, "bulk", out["component"])
	assert.Equal(t, sc.TraceID().String(), out["logging.googleapis.com/trace"])
	assert.Equal(t, sc.SpanID().String(), out["logging.googleapis.com/spanId"])
	assert.Equal(t, true, out["logging.googleapis.com/trace_sampled"])
}

func TestLogHandlerLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(telemetry.NewLogHandler(buf, telemetry.ParseLevel("warn")))
	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	assert.Equal(t, slog.LevelDebug, telemetry.ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelError, telemetry.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, telemetry.ParseLevel("verbose"))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, telemetry.Sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestSetupOpenTelemetryDisabled(t *testing.T) {
	config := cloud.NewConfig()
	config.Application.TelemetryEnabled = false

	shutdown, err := telemetry.SetupOpenTelemetry(context.Background(), config)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
