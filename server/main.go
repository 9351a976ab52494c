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
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/api"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/telemetry"
)

// APIPrefix is the route prefix of the public API.
const APIPrefix = "/public/embedding-service/v1"

func main() {
	config, err := GetConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := telemetry.SetupLogging(config.Application.LogLevel, config.Application.LogFile); err != nil {
		log.Fatal(err)
	}
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		log.Fatal(err)
	}

	if err := InitState(ctx); err != nil {
		slog.Error("failed to initialize state", "error", err)
		os.Exit(1)
	}
	defer state.cloud.Close()
	slog.Info("Initialized State")

	r := NewRouter(config.Application.Name)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Application.Port),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			cancel()
		}
	}()
	slog.Info("Server ready", "port", config.Application.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	// Stops listeners and bulk workers; pending items are marked failed.
	cancel()
	state.bulk.Wait()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("failed to shutdown telemetry", "error", err)
	}
	slog.Info("Server exiting")
}

// NewRouter wires the handlers onto a gin engine.
func NewRouter(service string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), api.Recovery())
	r.Use(otelgin.Middleware(service))
	r.Use(cors.Default())

	api.Health(r, service)

	v1 := r.Group(APIPrefix)
	{
		embeddings := &api.EmbeddingHandlers{
			Predictor:     state.prediction,
			Bulk:          state.bulk,
			Search:        state.search,
			MaxVideoBytes: state.config.Media.MaxVideoBytes,
		}
		embeddings.Register(v1)

		analysis := &api.AnalysisHandlers{
			Analyzer:      state.analysis,
			MaxVideoBytes: state.config.Media.MaxVideoBytes,
		}
		analysis.Register(v1)
	}
	return r
}
