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

package model

import (
	"encoding/json"
	"time"
)

// BulkRecord is one entry of a bulk upload file. The file format is flat, so every
// key of the JSON object (videoUrl included) is retained as metadata.
type BulkRecord struct {
	VideoURL string
	Metadata MetadataRecord
}

func (r *BulkRecord) UnmarshalJSON(data []byte) error {
	var raw MetadataRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Metadata = raw
	r.VideoURL = raw.String(MetadataVideoURL)
	return nil
}

func (r BulkRecord) MarshalJSON() ([]byte, error) {
	out := make(MetadataRecord, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		out[k] = v
	}
	out[MetadataVideoURL] = r.VideoURL
	return json.Marshal(out)
}

// IngestionMetadata returns the metadata written to the index for this record.
// The result name, when present, designates the namespace.
func (r BulkRecord) IngestionMetadata() MetadataRecord {
	if name := r.Metadata.ResultName(); name != "" {
		return r.Metadata.WithObjective(name)
	}
	return r.Metadata.WithObjective(r.Metadata.Objective())
}

// BulkBatch is the decoded bulk upload file.
type BulkBatch struct {
	Data []BulkRecord `json:"data"`
}

// ItemState is the lifecycle state of a single bulk item.
type ItemState string

const (
	ItemPending    ItemState = "PENDING"
	ItemProcessing ItemState = "PROCESSING"
	ItemCompleted  ItemState = "COMPLETED"
	ItemFailed     ItemState = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s ItemState) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed
}

// ItemStatus is the observable state of one bulk item.
type ItemStatus struct {
	Index     int       `json:"index"`
	VideoURL  string    `json:"videoUrl"`
	State     ItemState `json:"state"`
	Attempts  int       `json:"attempts"`
	EntryID   string    `json:"entryId,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BatchStatus is the observable state of a bulk batch.
type BatchStatus struct {
	ID          string       `json:"batchId"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	Items       []ItemStatus `json:"items"`
}

// NewBatchStatus creates a status with every record pending.
func NewBatchStatus(id string, records []BulkRecord) *BatchStatus {
	now := time.Now()
	items := make([]ItemStatus, len(records))
	for i, r := range records {
		items[i] = ItemStatus{Index: i, VideoURL: r.VideoURL, State: ItemPending, UpdatedAt: now}
	}
	return &BatchStatus{ID: id, CreatedAt: now, Items: items}
}

// Done reports whether every item reached a terminal state.
func (b *BatchStatus) Done() bool {
	for _, it := range b.Items {
		if !it.State.Terminal() {
			return false
		}
	}
	return true
}

// Counts returns the number of items per state.
func (b *BatchStatus) Counts() map[ItemState]int {
	out := map[ItemState]int{ItemPending: 0, ItemProcessing: 0, ItemCompleted: 0, ItemFailed: 0}
	for _, it := range b.Items {
		out[it.State]++
	}
	return out
}

// Clone returns a deep copy safe to hand to callers.
func (b *BatchStatus) Clone() *BatchStatus {
	out := *b
	out.Items = make([]ItemStatus, len(b.Items))
	copy(out.Items, b.Items)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
