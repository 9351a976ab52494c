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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/redis/go-redis/v9"
)

// RedisBatchStore keeps each batch as one JSON value that expires after ttl.
// Updates are optimistic WATCH/MULTI transactions on the batch key.
type RedisBatchStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisBatchStore(client *redis.Client, prefix string, ttl time.Duration) *RedisBatchStore {
	return &RedisBatchStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisBatchStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisBatchStore) Create(ctx context.Context, status *model.BatchStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(status.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store batch %s: %w", status.ID, err)
	}
	if !ok {
		return fmt.Errorf("batch %s already exists", status.ID)
	}
	return nil
}

func (r *RedisBatchStore) Get(ctx context.Context, id string) (*model.BatchStatus, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch %s: %w", id, err)
	}
	out := &model.BatchStatus{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", id, err)
	}
	return out, nil
}

func (r *RedisBatchStore) UpdateItem(ctx context.Context, id string, item model.ItemStatus) error {
	return r.update(ctx, id, func(b *model.BatchStatus) error {
		return applyItem(b, item)
	})
}

func (r *RedisBatchStore) Complete(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(b *model.BatchStatus) error {
		b.CompletedAt = &at
		return nil
	})
}

func (r *RedisBatchStore) update(ctx context.Context, id string, mutate func(*model.BatchStatus) error) error {
	key := r.key(id)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return model.ErrBatchNotFound
		}
		if err != nil {
			return err
		}
		b := &model.BatchStatus{}
		if err := json.Unmarshal(data, b); err != nil {
			return fmt.Errorf("failed to decode batch %s: %w", id, err)
		}
		if err := mutate(b); err != nil {
			return err
		}
		out, err := json.Marshal(b)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}
