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


package services_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
	test "github.com/jaycherian/gcp-go-predictive-analysis/internal/testutil"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// pointsServer is an in-process Qdrant points service that keeps the last
// request of each kind.
type pointsServer struct {
	qdrant.UnimplementedPointsServer

	mu      sync.Mutex
	upsert  *qdrant.UpsertPoints
	query   *qdrant.QueryPoints
	results []*qdrant.ScoredPoint
	fail    bool
}

func (s *pointsServer) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.PointsOperationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, status.Error(codes.Unavailable, "qdrant down")
	}
	s.upsert = req
	return &qdrant.PointsOperationResponse{Result: &qdrant.UpdateResult{Status: qdrant.UpdateStatus_Completed}}, nil
}

func (s *pointsServer) Query(_ context.Context, req *qdrant.QueryPoints) (*qdrant.QueryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, status.Error(codes.Unavailable, "qdrant down")
	}
	s.query = req
	return &qdrant.QueryResponse{Result: s.results}, nil
}

func (s *pointsServer) lastUpsert() *qdrant.UpsertPoints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert
}

func (s *pointsServer) lastQuery() *qdrant.QueryPoints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func newQdrant(t *testing.T, fake *pointsServer) *services.QdrantVectorStore {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	qdrant.RegisterPointsServer(srv, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   "127.0.0.1",
		Port:                   lis.Addr().(*net.TCPAddr).Port,
		SkipCompatibilityCheck: true,
		PoolSize:               1,
		KeepAliveTime:          -1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return services.NewQdrantVectorStore(client, "video-analysis-db", 3)
}

func TestQdrantUpsertTagsNamespace(t *testing.T) {
	fake := &pointsServer{}
	store := newQdrant(t, fake)

	entry := model.NewIndexEntry(test.Vector(0.3), model.MetadataRecord{"objective": "sales", "clicks": 12.0, "empty": nil})
	ack, err := store.Upsert(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, ack.ID)
	assert.Equal(t, "sales", ack.Namespace)
	assert.Equal(t, 1, ack.UpsertedCount)

	req := fake.lastUpsert()
	require.NotNil(t, req)
	assert.Equal(t, "video-analysis-db", req.GetCollectionName())
	require.Len(t, req.GetPoints(), 1)
	point := req.GetPoints()[0]
	assert.Equal(t, entry.ID, point.GetId().GetUuid())
	payload := point.GetPayload()
	assert.Equal(t, "sales", payload[services.QdrantNamespaceField].GetStringValue())
	assert.Equal(t, 12.0, payload["clicks"].GetDoubleValue())
	assert.NotContains(t, payload, "empty")
}

func TestQdrantQueryFiltersAndStripsNamespace(t *testing.T) {
	fake := &pointsServer{results: []*qdrant.ScoredPoint{
		{Id: qdrant.NewIDUUID("b"), Score: 0.4, Payload: qdrant.NewValueMap(map[string]any{services.QdrantNamespaceField: "sales", "clicks": 3.0})},
		{Id: qdrant.NewIDNum(7), Score: 0.9, Payload: qdrant.NewValueMap(map[string]any{services.QdrantNamespaceField: "sales"})},
	}}
	store := newQdrant(t, fake)

	out, err := store.Query(context.Background(), test.Vector(0.1), "sales", 0)
	require.NoError(t, err)

	req := fake.lastQuery()
	require.NotNil(t, req)
	assert.Equal(t, uint64(3), req.GetLimit())
	must := req.GetFilter().GetMust()
	require.Len(t, must, 1)
	assert.Equal(t, services.QdrantNamespaceField, must[0].GetField().GetKey())
	assert.Equal(t, "sales", must[0].GetField().GetMatch().GetKeyword())

	assert.Equal(t, "sales", out.Namespace)
	require.Len(t, out.Matches, 2)
	// Server rank order is kept.
	assert.Equal(t, "b", out.Matches[0].ID)
	assert.Equal(t, "7", out.Matches[1].ID)
	assert.NotContains(t, out.Matches[0].Metadata, services.QdrantNamespaceField)
	clicks, ok := out.Matches[0].Metadata.Number("clicks")
	assert.True(t, ok)
	assert.Equal(t, 3.0, clicks)
}

func TestQdrantErrors(t *testing.T) {
	store := newQdrant(t, &pointsServer{fail: true})
	ctx := context.Background()

	_, err := store.Query(ctx, test.Vector(0.1), "sales", 3)
	var verr *model.VectorStoreError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "query", verr.Op)

	_, err = store.Upsert(ctx, model.NewIndexEntry(test.Vector(0.1), model.MetadataRecord{"objective": "sales"}))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "upsert", verr.Op)

	var invalid *model.ValidationError
	_, err = store.Query(ctx, test.Vector(0.1), "", 3)
	assert.True(t, errors.As(err, &invalid))
}
