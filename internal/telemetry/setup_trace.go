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


package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	mexporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
)

// SetupOpenTelemetry installs the global propagator and, when telemetry is
// enabled, trace and metric providers exporting to Cloud Trace and Cloud
// Monitoring. The returned function flushes and stops whatever was started.
//
// With telemetry disabled the global providers stay no-op, so command tracers and
// counters cost nothing and no Google credentials are needed.
func SetupOpenTelemetry(ctx context.Context, config *cloud.Config) (func(context.Context) error, error) {
	var stops []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for i := len(stops) - 1; i >= 0; i-- {
			err = errors.Join(err, stops[i](ctx))
		}
		stops = nil
		return err
	}

	otel.SetTextMapPropagator(autoprop.NewTextMapPropagator())
	if !config.Application.TelemetryEnabled {
		slog.Info("telemetry export disabled")
		return shutdown, nil
	}

	res, err := serviceResource(ctx, config.Application.Name)
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(config, res)
	if err != nil {
		return nil, err
	}
	stops = append(stops, tp.Shutdown)
	otel.SetTracerProvider(tp)

	mp, err := newMeterProvider(config, res)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	stops = append(stops, mp.Shutdown)
	otel.SetMeterProvider(mp)

	slog.Info("telemetry export enabled", "project", config.Application.GoogleProjectId, "sampleRatio", config.Application.TraceSampleRatio)
	return shutdown, nil
}

// serviceResource describes the process, tolerating partial GCP detection when
// running off Google Cloud.
func serviceResource(ctx context.Context, service string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithDetectors(gcp.NewDetector()),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceNameKey.String(service)),
	)
	switch {
	case errors.Is(err, resource.ErrPartialResource), errors.Is(err, resource.ErrSchemaURLConflict):
		slog.Warn("partial resource detection", "error", err)
		return res, nil
	case err != nil:
		slog.Error("failed to detect resource", "error", err)
		return nil, err
	}
	return res, nil
}

// Sampler returns the parent based ratio sampler for ratio. Ratios outside (0, 1]
// sample everything.
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newTracerProvider(config *cloud.Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := texporter.New(texporter.WithProjectID(config.Application.GoogleProjectId))
	if err != nil {
		slog.Error("unable to set up trace exporter", "error", err)
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(config.Application.TraceSampleRatio)),
	), nil
}

func newMeterProvider(config *cloud.Config, res *resource.Resource) (*metric.MeterProvider, error) {
	exporter, err := mexporter.New(mexporter.WithProjectID(config.Application.GoogleProjectId))
	if err != nil {
		slog.Error("unable to set up metric exporter", "error", err)
		return nil, err
	}
	var readerOpts []metric.PeriodicReaderOption
	if config.Application.MetricInterval > 0 {
		readerOpts = append(readerOpts, metric.WithInterval(time.Duration(config.Application.MetricInterval)*time.Second))
	}
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, readerOpts...)),
		metric.WithResource(res),
	), nil
}
