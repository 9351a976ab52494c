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

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/commands"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/workflow"
)

// MaxStatusWait caps the ?wait= long poll of the bulk status route.
const MaxStatusWait = 30 * time.Second

// Predictor serves the synchronous embedding flows.
type Predictor interface {
	CreatePrediction(ctx context.Context, video *model.SourceVideo, namespace string) (*model.PredictionResult, error)
	EmbedAndUpload(ctx context.Context, videoURL string, metadata model.MetadataRecord) (*model.UpsertAck, error)
}

// BulkService accepts bulk batches and reports their progress.
type BulkService interface {
	SubmitRecords(ctx context.Context, records []model.BulkRecord) (string, error)
	Handle(ctx context.Context, id string) (*workflow.BatchHandle, error)
}

// Searcher finds indexed videos by text.
type Searcher interface {
	FindVideos(ctx context.Context, query string, namespace string, maxResults int) (*model.QueryResult, error)
}

// UploadRequest is the body of the single video upload.
type UploadRequest struct {
	VideoURL string               `json:"videoUrl"`
	MetaData model.MetadataRecord `json:"metaData"`
}

// SearchRequest is the body of a text search.
type SearchRequest struct {
	Query      string `json:"query"`
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

// BulkAccepted is returned once a bulk batch has been queued.
type BulkAccepted struct {
	BatchID string `json:"batchId"`
	Status  string `json:"status"`
}

// EmbeddingHandlers registers the /embeddings routes.
type EmbeddingHandlers struct {
	Predictor     Predictor
	Bulk          BulkService
	Search        Searcher
	MaxVideoBytes int64
}

func (h *EmbeddingHandlers) Register(r *gin.RouterGroup) {
	embeddings := r.Group("/embeddings")
	{
		embeddings.POST("/create", h.create)
		embeddings.POST("/upload", h.upload)
		embeddings.POST("/bulk/upload", h.bulkUpload)
		embeddings.GET("/bulk/:batchId", h.bulkStatus)
		if h.Search != nil {
			embeddings.POST("/search", h.search)
		}
	}
}

func (h *EmbeddingHandlers) create(c *gin.Context) {
	video, err := readVideoUpload(c, h.MaxVideoBytes)
	if err != nil {
		WriteError(c, err)
		return
	}
	out, err := h.Predictor.CreatePrediction(c.Request.Context(), video, c.PostForm("type"))
	if err != nil {
		WriteError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "metric predictions created", out)
}

func (h *EmbeddingHandlers) upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, model.NewValidationError("invalid request body: %v", err))
		return
	}
	if req.MetaData == nil {
		WriteError(c, model.NewValidationError("metaData is required"))
		return
	}
	ack, err := h.Predictor.EmbedAndUpload(c.Request.Context(), req.VideoURL, req.MetaData)
	if err != nil {
		WriteError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "embedding uploaded", ack)
}

func (h *EmbeddingHandlers) bulkUpload(c *gin.Context) {
	data, _, err := readUpload(c, commands.MaxBatchFileBytes)
	if err != nil {
		WriteError(c, err)
		return
	}
	batch, err := commands.DecodeBulkBatch(bytes.NewReader(data))
	if err != nil {
		WriteError(c, err)
		return
	}
	id, err := h.Bulk.SubmitRecords(c.Request.Context(), batch.Data)
	if err != nil {
		WriteError(c, err)
		return
	}
	writeOK(c, http.StatusAccepted, "bulk upload accepted", BulkAccepted{BatchID: id, Status: string(model.ItemPending)})
}

// bulkStatus reports a batch snapshot.
//
// Logic Flow:
//  1. Parse the optional wait query parameter, in seconds, capped at MaxStatusWait.
//  2. Resolve the batch handle; unknown ids answer 404.
//  3. Without wait, return the current snapshot.
//  4. With wait, block until the batch finishes or the wait elapses, then return
//     whatever the snapshot is at that point.
func (h *EmbeddingHandlers) bulkStatus(c *gin.Context) {
	var wait time.Duration
	if raw := c.Query("wait"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			WriteError(c, model.NewValidationError("wait must be a non-negative number of seconds"))
			return
		}
		wait = MaxStatusWait
		if seconds < int(MaxStatusWait/time.Second) {
			wait = time.Duration(seconds) * time.Second
		}
	}

	ctx := c.Request.Context()
	handle, err := h.Bulk.Handle(ctx, c.Param("batchId"))
	if err != nil {
		WriteError(c, err)
		return
	}

	var status *model.BatchStatus
	if wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		status, err = handle.Wait(waitCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			status, err = handle.Status(ctx)
		}
	} else {
		status, err = handle.Status(ctx)
	}
	if err != nil {
		WriteError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "bulk batch status", status)
}

func (h *EmbeddingHandlers) search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, model.NewValidationError("invalid request body: %v", err))
		return
	}
	out, err := h.Search.FindVideos(c.Request.Context(), req.Query, req.Type, req.MaxResults)
	if err != nil {
		WriteError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "search results", out)
}
