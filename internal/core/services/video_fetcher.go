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
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/cloud"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
)

// DefaultVideoMIMEType is assumed when neither the source nor the content tells.
const DefaultVideoMIMEType = "video/mp4"

// ObjectReader opens Cloud Storage objects.
type ObjectReader interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, string, error)
}

// StorageObjectReader reads objects with a storage client.
type StorageObjectReader struct {
	Client *storage.Client
}

func (s StorageObjectReader) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, string, error) {
	r, err := s.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, "", err
	}
	return r, r.Attrs.ContentType, nil
}

// VideoFetcher downloads source videos from http(s) or gs:// URLs.
type VideoFetcher struct {
	HTTPClient *http.Client
	Objects    ObjectReader // Nil disables gs:// URLs.
	MaxBytes   int64
}

func NewVideoFetcher(objects ObjectReader, maxBytes int64, timeout time.Duration) *VideoFetcher {
	return &VideoFetcher{
		HTTPClient: &http.Client{Timeout: timeout},
		Objects:    objects,
		MaxBytes:   maxBytes,
	}
}

// Fetch downloads rawURL into memory.
func (f *VideoFetcher) Fetch(ctx context.Context, rawURL string) (*model.SourceVideo, error) {
	data, contentType, err := f.FetchBytes(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, model.NewValidationError("video at %s is empty", rawURL)
	}
	return &model.SourceVideo{Data: data, MIMEType: DetectMIME(data, contentType)}, nil
}

// FetchBytes downloads rawURL and returns its body and declared content type.
func (f *VideoFetcher) FetchBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if cloud.IsGCSURL(rawURL) {
		return f.fetchObject(ctx, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", model.NewValidationError("unsupported video url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &model.FetchError{URL: rawURL, Err: err}
	}
	res, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, "", &model.FetchError{URL: rawURL, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, "", &model.FetchError{URL: rawURL, StatusCode: res.StatusCode}
	}
	data, err := f.readLimited(rawURL, res.Body)
	if err != nil {
		return nil, "", err
	}
	return data, res.Header.Get("Content-Type"), nil
}

func (f *VideoFetcher) fetchObject(ctx context.Context, rawURL string) ([]byte, string, error) {
	obj, err := cloud.ParseGCSURL(rawURL)
	if err != nil {
		return nil, "", model.NewValidationError("%v", err)
	}
	if f.Objects == nil {
		return nil, "", model.NewValidationError("gs:// urls are not supported by this deployment")
	}
	reader, contentType, err := f.Objects.NewReader(ctx, obj.Bucket, obj.Name)
	if err != nil {
		return nil, "", &model.FetchError{URL: rawURL, Err: err}
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.Warn("failed to close GCS reader", "url", rawURL, "error", err)
		}
	}()
	data, err := f.readLimited(rawURL, reader)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func (f *VideoFetcher) readLimited(rawURL string, r io.Reader) ([]byte, error) {
	if f.MaxBytes > 0 {
		r = io.LimitReader(r, f.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: err}
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, model.NewValidationError("video at %s exceeds %d bytes", rawURL, f.MaxBytes)
	}
	return data, nil
}

// DetectMIME returns declared when it names a video type, otherwise the type
// sniffed from data, otherwise DefaultVideoMIMEType.
func DetectMIME(data []byte, declared string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mt, "video/") {
		return mt
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown && kind.MIME.Value != "" {
		return kind.MIME.Value
	}
	return DefaultVideoMIMEType
}

// IsVideo reports whether data looks like a video container.
func IsVideo(data []byte) bool {
	return filetype.IsVideo(data)
}

