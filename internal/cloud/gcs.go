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

package cloud

import (
	"fmt"
	"strings"
)

// GCSScheme is the URL scheme of Cloud Storage objects.
const GCSScheme = "gs://"

// GetGCSObjectName is the context key under which a GCSObject is passed between commands.
func GetGCSObjectName() string {
	return "__GCS__OBJ__"
}

// GCSPubSubNotification is the JSON payload of a Cloud Storage object notification.
// Only the fields the bulk trigger reads are mapped.
type GCSPubSubNotification struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
	TimeCreated string `json:"timeCreated"`
}

// GCSObject identifies a Cloud Storage object.
type GCSObject struct {
	Bucket   string
	Name     string
	MIMEType string
}

// URL renders the object as gs://bucket/name.
func (o GCSObject) URL() string {
	return GCSScheme + o.Bucket + "/" + o.Name
}

// IsGCSURL reports whether raw uses the gs:// scheme.
func IsGCSURL(raw string) bool {
	return strings.HasPrefix(raw, GCSScheme)
}

// ParseGCSURL splits gs://bucket/path/to/object into its bucket and object name.
func ParseGCSURL(raw string) (GCSObject, error) {
	if !IsGCSURL(raw) {
		return GCSObject{}, fmt.Errorf("not a gs:// url: %q", raw)
	}
	bucket, name, ok := strings.Cut(strings.TrimPrefix(raw, GCSScheme), "/")
	if !ok || bucket == "" || name == "" {
		return GCSObject{}, fmt.Errorf("gs:// url must name a bucket and an object: %q", raw)
	}
	return GCSObject{Bucket: bucket, Name: name}, nil
}
