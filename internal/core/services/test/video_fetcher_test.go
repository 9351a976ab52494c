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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
	test "github.com/jaycherian/gcp-go-predictive-analysis/internal/testutil"
	"github.com/zeebo/assert"
)

type fakeObjects struct {
	objects map[string][]byte
}

func (f *fakeObjects) NewReader(_ context.Context, bucket, object string) (io.ReadCloser, string, error) {
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, "", errors.New("storage: object doesn't exist")
	}
	return io.NopCloser(bytes.NewReader(data)), "video/quicktime", nil
}

func TestFetchHTTP(t *testing.T) {
	video := test.MP4Header()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(video)
	}))
	defer srv.Close()
	fetcher := services.NewVideoFetcher(nil, 1024, 5*time.Second)

	out, err := fetcher.Fetch(context.Background(), srv.URL+"/ok.mp4")
	assert.NoError(t, err)
	assert.DeepEqual(t, out.Data, video)
	assert.Equal(t, out.MIMEType, "video/mp4")

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/missing.mp4")
	var ferr *model.FetchError
	assert.That(t, errors.As(err, &ferr))
	assert.Equal(t, ferr.StatusCode, http.StatusNotFound)
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, err := services.NewVideoFetcher(nil, 32, time.Second).Fetch(context.Background(), srv.URL)
	var verr *model.ValidationError
	assert.That(t, errors.As(err, &verr))
}

func TestFetchRejectsUnsupportedURL(t *testing.T) {
	fetcher := services.NewVideoFetcher(nil, 0, time.Second)
	for _, raw := range []string{"", "ftp://host/a.mp4", "not a url", "gs://bucket-only"} {
		_, err := fetcher.Fetch(context.Background(), raw)
		var verr *model.ValidationError
		assert.That(t, errors.As(err, &verr))
	}
}

func TestFetchGCS(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{"ugc/ads/a.mov": []byte("quicktime bytes")}}
	fetcher := services.NewVideoFetcher(objects, 0, time.Second)

	out, err := fetcher.Fetch(context.Background(), "gs://ugc/ads/a.mov")
	assert.NoError(t, err)
	assert.Equal(t, out.MIMEType, "video/quicktime")

	_, err = fetcher.Fetch(context.Background(), "gs://ugc/ads/missing.mov")
	var ferr *model.FetchError
	assert.That(t, errors.As(err, &ferr))
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, services.DetectMIME(nil, "video/webm; codecs=vp9"), "video/webm")
	assert.Equal(t, services.DetectMIME(test.MP4Header(), ""), "video/mp4")
	assert.Equal(t, services.DetectMIME([]byte("????"), "text/plain"), services.DefaultVideoMIMEType)
	assert.That(t, services.IsVideo(test.MP4Header()))
	assert.That(t, !services.IsVideo([]byte("plain text")))
}
