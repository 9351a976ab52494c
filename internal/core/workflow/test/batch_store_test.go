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


package workflow_test

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBatchStore runs the contract every BatchStore must satisfy.
func exerciseBatchStore(t *testing.T, store workflow.BatchStore) {
	t.Helper()
	id := uuid.NewString()
	status := model.NewBatchStatus(id, records("a", "b"))
	require.NoError(t, store.Create(ctx, status))
	assert.Error(t, store.Create(ctx, status))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ItemPending, got.Items[1].State)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.UpdateItem(ctx, id, model.ItemStatus{Index: 1, VideoURL: "b", State: model.ItemFailed, Attempts: 3, Error: "boom"}))
	assert.Error(t, store.UpdateItem(ctx, id, model.ItemStatus{Index: 9}))
	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Complete(ctx, id, at))

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ItemFailed, got.Items[1].State)
	assert.Equal(t, "boom", got.Items[1].Error)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, at.Equal(*got.CompletedAt))

	_, err = store.Get(ctx, "missing-"+id)
	assert.ErrorIs(t, err, model.ErrBatchNotFound)
	assert.ErrorIs(t, store.UpdateItem(ctx, "missing-"+id, model.ItemStatus{}), model.ErrBatchNotFound)
	assert.ErrorIs(t, store.Complete(ctx, "missing-"+id, at), model.ErrBatchNotFound)
}

func TestMemoryBatchStore(t *testing.T) {
	store := workflow.NewMemoryBatchStore(0)
	exerciseBatchStore(t, store)

	// Callers get copies.
	id := uuid.NewString()
	require.NoError(t, store.Create(ctx, model.NewBatchStatus(id, records("a"))))
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	got.Items[0].State = model.ItemFailed
	again, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ItemPending, again.Items[0].State)
}

func TestMemoryBatchStoreEvictsCompletedBatches(t *testing.T) {
	now := time.Date(2024, 10, 11, 3, 0, 0, 0, time.UTC)
	store := workflow.NewMemoryBatchStore(time.Hour).WithClock(func() time.Time { return now })

	done, running := uuid.NewString(), uuid.NewString()
	require.NoError(t, store.Create(ctx, model.NewBatchStatus(done, records("a"))))
	require.NoError(t, store.Create(ctx, model.NewBatchStatus(running, records("b"))))
	require.NoError(t, store.Complete(ctx, done, now))

	now = now.Add(59 * time.Minute)
	_, err := store.Get(ctx, done)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, done)
	assert.ErrorIs(t, err, model.ErrBatchNotFound)
	_, err = store.Get(ctx, running)
	assert.NoError(t, err)

	// The next write drops the expired entry for good.
	require.NoError(t, store.Create(ctx, model.NewBatchStatus(uuid.NewString(), records("c"))))
	assert.Equal(t, 2, store.Len())
}

// TestRedisBatchStore needs a reachable redis, e.g. REDIS_ADDR=localhost:6379.
func TestRedisBatchStore(t *testing.T) {
	addr := os.Getenv(cloud.EnvRedisAddr)
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store, err := workflow.NewBatchStore(cloud.BatchStore{Provider: cloud.ProviderRedis, KeyPrefix: "test-bulk-batch:", TTLHours: 1}, client)
	require.NoError(t, err)
	exerciseBatchStore(t, store)
}

func TestNewBatchStore(t *testing.T) {
	store, err := workflow.NewBatchStore(cloud.BatchStore{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &workflow.MemoryBatchStore{}, store)

	_, err = workflow.NewBatchStore(cloud.BatchStore{Provider: cloud.ProviderRedis}, nil)
	assert.Error(t, err)
	_, err = workflow.NewBatchStore(cloud.BatchStore{Provider: "etcd"}, nil)
	assert.Error(t, err)
}
