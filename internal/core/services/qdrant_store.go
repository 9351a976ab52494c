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

package services

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantNamespaceField is the payload key that scopes points to a namespace.
const QdrantNamespaceField = "_namespace"

// QdrantVectorStore keeps every namespace in one collection and filters on the
// namespace payload field.
type QdrantVectorStore struct {
	client     *qdrant.Client
	collection string
	topK       int
}

func NewQdrantVectorStore(client *qdrant.Client, collection string, topK int) *QdrantVectorStore {
	return &QdrantVectorStore{client: client, collection: collection, topK: topK}
}

// EnsureCollection creates the collection with a cosine, 1408 wide vector space.
func (q *QdrantVectorStore) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     model.EmbeddingDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (q *QdrantVectorStore) Upsert(ctx context.Context, entry *model.IndexEntry) (*model.UpsertAck, error) {
	ns, err := checkEntry(entry)
	if err != nil {
		return nil, err
	}
	payload := compactMetadata(entry.Metadata)
	payload[QdrantNamespaceField] = ns

	res, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(entry.ID),
			Vectors: qdrant.NewVectors(entry.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return nil, &model.VectorStoreError{Op: "upsert", Err: err}
	}
	return &model.UpsertAck{ID: entry.ID, Namespace: ns, UpsertedCount: 1, Status: res.GetStatus().String()}, nil
}

func (q *QdrantVectorStore) Query(ctx context.Context, vector model.EmbeddingVector, namespace string, topK int) (*model.QueryResult, error) {
	if topK <= 0 {
		topK = q.topK
	}
	topK, err := checkQuery(vector, namespace, topK)
	if err != nil {
		return nil, err
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(QdrantNamespaceField, namespace)},
		},
		Limit:       qdrant.PtrOf(uint64(topK)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &model.VectorStoreError{Op: "query", Err: err}
	}

	matches := make([]model.Match, 0, len(points))
	for _, p := range points {
		md := PayloadToMetadata(p.GetPayload())
		delete(md, QdrantNamespaceField)
		matches = append(matches, model.Match{ID: pointID(p.GetId()), Score: p.GetScore(), Metadata: md})
	}
	return &model.QueryResult{Namespace: namespace, Matches: matches}, nil
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

// PayloadToMetadata converts a qdrant payload back to plain Go values.
func PayloadToMetadata(payload map[string]*qdrant.Value) model.MetadataRecord {
	out := make(model.MetadataRecord, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch k := v.GetKind().(type) {
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		return map[string]any(PayloadToMetadata(k.StructValue.GetFields()))
	case *qdrant.Value_ListValue:
		items := k.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	}
	return nil
}
