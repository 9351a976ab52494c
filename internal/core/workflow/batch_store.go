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
	"fmt"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/redis/go-redis/v9"
)

// BatchStore keeps the observable state of bulk batches. Unknown ids yield
// model.ErrBatchNotFound.
type BatchStore interface {
	Create(ctx context.Context, status *model.BatchStatus) error
	Get(ctx context.Context, id string) (*model.BatchStatus, error)
	UpdateItem(ctx context.Context, id string, item model.ItemStatus) error
	Complete(ctx context.Context, id string, at time.Time) error
}

// NewBatchStore builds the store selected by cfg.Provider.
func NewBatchStore(cfg cloud.BatchStore, client *redis.Client) (BatchStore, error) {
	switch cfg.Provider {
	case "", cloud.ProviderMemory:
		return NewMemoryBatchStore(cfg.TTL()), nil
	case cloud.ProviderRedis:
		if client == nil {
			return nil, fmt.Errorf("redis batch store selected but no client was created")
		}
		return NewRedisBatchStore(client, cfg.KeyPrefix, cfg.TTL()), nil
	}
	return nil, fmt.Errorf("unknown batch store provider %q", cfg.Provider)
}

// MemoryBatchStore is a process local BatchStore. A completed batch is dropped
// once ttl has passed since its completion; running batches are never dropped.
type MemoryBatchStore struct {
	mu      sync.RWMutex
	batches map[string]*model.BatchStatus
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryBatchStore returns an empty store. A ttl <= 0 keeps batches forever.
func NewMemoryBatchStore(ttl time.Duration) *MemoryBatchStore {
	return &MemoryBatchStore{batches: make(map[string]*model.BatchStatus), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for expiry.
func (m *MemoryBatchStore) WithClock(now func() time.Time) *MemoryBatchStore {
	m.now = now
	return m
}

func (m *MemoryBatchStore) expired(b *model.BatchStatus) bool {
	return m.ttl > 0 && b.CompletedAt != nil && m.now().Sub(*b.CompletedAt) >= m.ttl
}

// sweep drops expired batches. Callers hold the write lock.
func (m *MemoryBatchStore) sweep() {
	for id, b := range m.batches {
		if m.expired(b) {
			delete(m.batches, id)
		}
	}
}

// Len reports the number of batches currently held.
func (m *MemoryBatchStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.batches)
}

func (m *MemoryBatchStore) Create(_ context.Context, status *model.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	if _, ok := m.batches[status.ID]; ok {
		return fmt.Errorf("batch %s already exists", status.ID)
	}
	m.batches[status.ID] = status.Clone()
	return nil
}

func (m *MemoryBatchStore) Get(_ context.Context, id string) (*model.BatchStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok || m.expired(b) {
		return nil, model.ErrBatchNotFound
	}
	return b.Clone(), nil
}

func (m *MemoryBatchStore) UpdateItem(_ context.Context, id string, item model.ItemStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return model.ErrBatchNotFound
	}
	return applyItem(b, item)
}

func (m *MemoryBatchStore) Complete(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return model.ErrBatchNotFound
	}
	b.CompletedAt = &at
	return nil
}

func applyItem(b *model.BatchStatus, item model.ItemStatus) error {
	if item.Index < 0 || item.Index >= len(b.Items) {
		return fmt.Errorf("batch %s has no item %d", b.ID, item.Index)
	}
	b.Items[item.Index] = item
	return nil
}
