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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// statusPollInterval is how often Wait polls a store for batches owned by
// another process.
const statusPollInterval = time.Second

// BulkOptions is the pacing and retry policy of a BulkIngestionPipeline.
type BulkOptions struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	ItemInterval time.Duration
	// Wait sleeps between attempts and items. Defaults to services.SleepContext.
	Wait func(ctx context.Context, d time.Duration) error
}

// BulkOptionsFromConfig maps the [bulk] configuration section.
func BulkOptionsFromConfig(cfg cloud.BulkIngestion) BulkOptions {
	return BulkOptions{MaxAttempts: cfg.MaxAttempts, RetryDelay: cfg.RetryDelay(), ItemInterval: cfg.ItemInterval()}
}

// BulkIngestionPipeline ingests the records of a batch one after the other in a
// background goroutine. A failing record is retried up to MaxAttempts times and
// then marked failed; the batch always moves on to the next record.
type BulkIngestionPipeline struct {
	ingestor services.Ingestor
	store    BatchStore
	rootCtx  context.Context
	opts     BulkOptions

	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]chan struct{}
}

// NewBulkIngestionPipeline creates a pipeline whose workers live as long as rootCtx.
func NewBulkIngestionPipeline(rootCtx context.Context, ingestor services.Ingestor, store BatchStore, opts BulkOptions) *BulkIngestionPipeline {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Wait == nil {
		opts.Wait = services.SleepContext
	}
	return &BulkIngestionPipeline{
		ingestor: ingestor,
		store:    store,
		rootCtx:  rootCtx,
		opts:     opts,
		running:  make(map[string]chan struct{}),
	}
}

// BatchHandle observes one submitted batch.
type BatchHandle struct {
	ID       string
	pipeline *BulkIngestionPipeline
	done     <-chan struct{}
}

// Status returns a snapshot of the batch.
func (h *BatchHandle) Status(ctx context.Context) (*model.BatchStatus, error) {
	return h.pipeline.store.Get(ctx, h.ID)
}

// Wait blocks until every item of the batch is terminal or ctx is done.
func (h *BatchHandle) Wait(ctx context.Context) (*model.BatchStatus, error) {
	if h.done != nil {
		select {
		case <-h.done:
			return h.Status(ctx)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()
	for {
		status, err := h.Status(ctx)
		if err != nil {
			return nil, err
		}
		if status.CompletedAt != nil || status.Done() {
			return status, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Submit validates records, stores the batch as pending and starts its worker.
// It returns as soon as the batch is stored.
func (p *BulkIngestionPipeline) Submit(ctx context.Context, records []model.BulkRecord) (*BatchHandle, error) {
	if len(records) == 0 {
		return nil, model.NewValidationError("batch has no records")
	}
	for i, rec := range records {
		if rec.VideoURL == "" {
			return nil, model.NewValidationError("record %d has no videoUrl", i)
		}
	}

	id := uuid.NewString()
	if err := p.store.Create(ctx, model.NewBatchStatus(id, records)); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.running[id] = done
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(id, records, done)

	slog.InfoContext(ctx, "bulk batch accepted", "batchId", id, "records", len(records))
	return &BatchHandle{ID: id, pipeline: p, done: done}, nil
}

// SubmitRecords is Submit for callers that only need the batch id.
func (p *BulkIngestionPipeline) SubmitRecords(ctx context.Context, records []model.BulkRecord) (string, error) {
	h, err := p.Submit(ctx, records)
	if err != nil {
		return "", err
	}
	return h.ID, nil
}

// Handle returns a handle for a batch id, local or not. Unknown ids yield
// model.ErrBatchNotFound.
func (p *BulkIngestionPipeline) Handle(ctx context.Context, id string) (*BatchHandle, error) {
	if _, err := p.store.Get(ctx, id); err != nil {
		return nil, err
	}
	p.mu.Lock()
	done := p.running[id]
	p.mu.Unlock()
	h := &BatchHandle{ID: id, pipeline: p}
	if done != nil {
		h.done = done
	}
	return h, nil
}

// Wait blocks until every worker started by this pipeline has returned.
func (p *BulkIngestionPipeline) Wait() {
	p.wg.Wait()
}

// run is the worker of one batch.
//
// Logic Flow:
//  1. Walk the records in order. Before each record, stop if the pipeline's root
//     context is done and mark every remaining record FAILED with its error.
//  2. Mark the record PROCESSING and hand it to processItem.
//  3. Record the outcome: COMPLETED with the index entry id, or FAILED with the
//     attempt count and the last error. A failed record never stops the batch.
//  4. Pause ItemInterval between records. There is no pause after the last one.
//  5. Stamp the batch complete, then release Wait and the batch's handles.
//
// Store writes use a context detached from cancellation, so the final state of
// every record lands even during shutdown.
func (p *BulkIngestionPipeline) run(id string, records []model.BulkRecord, done chan struct{}) {
	defer p.wg.Done()
	defer func() {
		close(done)
		p.mu.Lock()
		delete(p.running, id)
		p.mu.Unlock()
	}()

	ctx := p.rootCtx
	// Status writes must land even after shutdown has cancelled ctx.
	storeCtx := context.WithoutCancel(ctx)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			p.failRemaining(storeCtx, id, records[i:], i, err)
			break
		}

		p.setItem(storeCtx, id, model.ItemStatus{Index: i, VideoURL: rec.VideoURL, State: model.ItemProcessing})
		ack, attempts, err := p.processItem(ctx, storeCtx, id, i, rec)
		if err != nil {
			slog.Error("bulk item failed", "batchId", id, "index", i, "url", rec.VideoURL, "attempts", attempts, "error", err)
			p.setItem(storeCtx, id, model.ItemStatus{Index: i, VideoURL: rec.VideoURL, State: model.ItemFailed, Attempts: attempts, Error: err.Error()})
		} else {
			p.setItem(storeCtx, id, model.ItemStatus{Index: i, VideoURL: rec.VideoURL, State: model.ItemCompleted, Attempts: attempts, EntryID: ack.ID})
		}

		if i < len(records)-1 {
			if err := p.opts.Wait(ctx, p.opts.ItemInterval); err != nil {
				p.failRemaining(storeCtx, id, records[i+1:], i+1, err)
				break
			}
		}
	}

	if err := p.store.Complete(storeCtx, id, time.Now()); err != nil {
		slog.Error("failed to complete bulk batch", "batchId", id, "error", err)
	}
	slog.Info("bulk batch finished", "batchId", id)
}

// processItem runs the ingestion chain for rec with bounded retries.
//
// Logic Flow:
//  1. Derive the ingestion metadata; resultName overrides objective as namespace.
//  2. Call the Ingestor. Success returns immediately with the attempt number.
//  3. A ValidationError is returned as is; retrying bad input cannot succeed.
//  4. Otherwise record the attempt's error on the item and wait RetryDelay before
//     the next attempt. An interrupted wait ends the item with the wait's error.
//  5. After MaxAttempts failures return an ExhaustedRetryError wrapping the last error.
//
// Inputs:
//   - ctx: Bounds the ingestion calls and the retry waits.
//   - storeCtx: Used for the intermediate status writes.
//   - id, index: Locate the item in the batch.
//   - rec: The record to ingest.
//
// Outputs:
//   - *model.UpsertAck: The acknowledgement of the successful attempt.
//   - int: The number of attempts made.
//   - error: The reason the item failed, or nil.
func (p *BulkIngestionPipeline) processItem(ctx, storeCtx context.Context, id string, index int, rec model.BulkRecord) (*model.UpsertAck, int, error) {
	metadata := rec.IngestionMetadata()
	var last error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		ack, err := p.ingestor.Ingest(ctx, rec.VideoURL, metadata)
		if err == nil {
			return ack, attempt, nil
		}
		last = err

		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return nil, attempt, err
		}
		slog.Warn("bulk item attempt failed", "batchId", id, "index", index, "attempt", attempt, "error", err)

		if attempt == p.opts.MaxAttempts {
			break
		}
		p.setItem(storeCtx, id, model.ItemStatus{Index: index, VideoURL: rec.VideoURL, State: model.ItemProcessing, Attempts: attempt, Error: err.Error()})
		if werr := p.opts.Wait(ctx, p.opts.RetryDelay); werr != nil {
			return nil, attempt, fmt.Errorf("%w after attempt %d: %v", werr, attempt, last)
		}
	}
	return nil, p.opts.MaxAttempts, &model.ExhaustedRetryError{Attempts: p.opts.MaxAttempts, Err: last}
}

func (p *BulkIngestionPipeline) failRemaining(ctx context.Context, id string, records []model.BulkRecord, offset int, cause error) {
	for j, rec := range records {
		p.setItem(ctx, id, model.ItemStatus{Index: offset + j, VideoURL: rec.VideoURL, State: model.ItemFailed, Error: cause.Error()})
	}
}

func (p *BulkIngestionPipeline) setItem(ctx context.Context, id string, item model.ItemStatus) {
	item.UpdatedAt = time.Now()
	if err := p.store.UpdateItem(ctx, id, item); err != nil {
		slog.Error("failed to update bulk item", "batchId", id, "index", item.Index, "error", err)
	}
}
