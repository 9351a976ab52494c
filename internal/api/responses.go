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

// Package api holds the gin handlers of the embedding service. Handlers decode the
// request, call a service and translate typed errors into the JSON error shape.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// Response is the success envelope.
type Response struct {
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// ErrorResponse is the failure envelope. Error is only set for classified errors.
type ErrorResponse struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Error string `json:"error,omitempty"`
}

// StatusFor maps an error to its HTTP status and public message.
func StatusFor(err error) (int, string, bool) {
	var (
		validation *model.ValidationError
		transcode  *model.TranscodeError
		embedding  *model.EmbeddingServiceError
		store      *model.VectorStoreError
		fetch      *model.FetchError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "invalid request", true
	case errors.Is(err, model.ErrBatchNotFound):
		return http.StatusNotFound, "batch not found", true
	case errors.As(err, &transcode):
		return http.StatusInternalServerError, "failed to process video", true
	case errors.As(err, &embedding):
		return http.StatusBadGateway, "embedding service failed", true
	case errors.As(err, &store):
		return http.StatusBadGateway, "vector store failed", true
	case errors.As(err, &fetch):
		return http.StatusBadGateway, "failed to fetch video", true
	}
	return http.StatusInternalServerError, "internal server error", false
}

// WriteError logs err and writes the error envelope.
func WriteError(c *gin.Context, err error) {
	code, msg, known := StatusFor(err)
	out := ErrorResponse{Code: code, Msg: msg}
	if known {
		out.Error = err.Error()
	}
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "status", code, "error", err)
	} else {
		slog.WarnContext(c.Request.Context(), "request rejected", "path", c.FullPath(), "status", code, "error", err)
	}
	c.AbortWithStatusJSON(code, out)
}

func writeOK(c *gin.Context, code int, msg string, data any) {
	c.JSON(code, Response{Msg: msg, Data: data})
}
