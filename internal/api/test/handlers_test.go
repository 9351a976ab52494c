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


package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/api"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-predictive-analysis/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePredictor struct {
	namespace string
	video     *model.SourceVideo
	err       error
}

func (f *fakePredictor) CreatePrediction(_ context.Context, video *model.SourceVideo, namespace string) (*model.PredictionResult, error) {
	f.video, f.namespace = video, namespace
	if f.err != nil {
		return nil, f.err
	}
	if namespace == "" {
		return nil, model.NewValidationError("type is required")
	}
	return &model.PredictionResult{
		Namespace:         namespace,
		Matches:           []model.Match{{ID: "m1", Score: 0.9}},
		MetricPredictions: &model.MetricPrediction{Clicks: model.Metric(17), ResultName: model.Unavailable},
	}, nil
}

func (f *fakePredictor) EmbedAndUpload(_ context.Context, videoURL string, metadata model.MetadataRecord) (*model.UpsertAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.UpsertAck{ID: "id-1", Namespace: metadata.Objective(), UpsertedCount: 1}, nil
}

// bulkIngestor records the videos a bulk pipeline ingests. Ingest blocks until
// release is closed when one is set.
type bulkIngestor struct {
	mu      sync.Mutex
	urls    []string
	release chan struct{}
}

func (b *bulkIngestor) Ingest(ctx context.Context, videoURL string, metadata model.MetadataRecord) (*model.UpsertAck, error) {
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.urls = append(b.urls, videoURL)
	return &model.UpsertAck{ID: fmt.Sprintf("entry-%d", len(b.urls)), Namespace: metadata.Objective(), UpsertedCount: 1}, nil
}

func newBulk(t *testing.T, ingestor *bulkIngestor) *workflow.BulkIngestionPipeline {
	t.Helper()
	rootCtx, cancel := context.WithCancel(context.Background())
	pipeline := workflow.NewBulkIngestionPipeline(rootCtx, ingestor, workflow.NewMemoryBatchStore(0),
		workflow.BulkOptions{MaxAttempts: 1, Wait: (&test.NoWait{}).Wait})
	t.Cleanup(func() {
		cancel()
		pipeline.Wait()
	})
	return pipeline
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) AnalyzeVideo(_ context.Context, _ *model.SourceVideo, objective string) (map[string]any, error) {
	return map[string]any{"objective": objective, "score": 8}, nil
}

func newRouter(predictor *fakePredictor, bulk api.BulkService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(api.Recovery())
	api.Health(r, "predictive-analysis-test")
	v1 := r.Group("/public/embedding-service/v1")
	(&api.EmbeddingHandlers{Predictor: predictor, Bulk: bulk, MaxVideoBytes: 1 << 20}).Register(v1)
	(&api.AnalysisHandlers{Analyzer: fakeAnalyzer{}, MaxVideoBytes: 1 << 20}).Register(v1)
	return r
}

// multipartBody builds a form with a file part of the given content type.
func multipartBody(t *testing.T, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="upload"`, api.FileField))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func serve(r http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreatePrediction(t *testing.T) {
	predictor := &fakePredictor{}
	r := newRouter(predictor, newBulk(t, &bulkIngestor{}))

	body, ct := multipartBody(t, "video/mp4", []byte("video bytes"), map[string]string{"type": "sales"})
	rec := serve(r, http.MethodPost, "/public/embedding-service/v1/embeddings/create", body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sales", predictor.namespace)
	assert.Equal(t, "video/mp4", predictor.video.MIMEType)
	data := decode(t, rec)["data"].(map[string]any)
	metrics := data["metricPredictions"].(map[string]any)
	assert.Equal(t, 17.0, metrics["Clicks"])
	assert.Equal(t, model.Unavailable, metrics["Cpc"])
}

func TestCreatePredictionSniffsUndeclaredVideo(t *testing.T) {
	predictor := &fakePredictor{}
	r := newRouter(predictor, newBulk(t, &bulkIngestor{}))

	body, ct := multipartBody(t, "application/octet-stream", test.MP4Header(), map[string]string{"type": "sales"})
	rec := serve(r, http.MethodPost, "/public/embedding-service/v1/embeddings/create", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "video/mp4", predictor.video.MIMEType)
}

func TestCreatePredictionRejectsBadInput(t *testing.T) {
	r := newRouter(&fakePredictor{}, newBulk(t, &bulkIngestor{}))
	path := "/public/embedding-service/v1/embeddings/create"

	body, ct := multipartBody(t, "", nil, map[string]string{"type": "sales"})
	rec := serve(r, http.MethodPost, path, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "text/plain", []byte("hello"), map[string]string{"type": "sales"})
	rec = serve(r, http.MethodPost, path, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "video/mp4", []byte("video"), nil)
	rec = serve(r, http.MethodPost, path, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, 400.0, out["code"])
	assert.Contains(t, out["error"], "type is required")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		hidden bool
	}{
		{&model.TranscodeError{Msg: "moov atom not found"}, http.StatusInternalServerError, false},
		{&model.EmbeddingServiceError{StatusCode: 429, Msg: "quota"}, http.StatusBadGateway, false},
		{&model.VectorStoreError{Op: "query", Err: errors.New("timeout")}, http.StatusBadGateway, false},
		{&model.FetchError{URL: "https://x", StatusCode: 404}, http.StatusBadGateway, false},
		{errors.New("secret internal detail"), http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		r := newRouter(&fakePredictor{err: tc.err}, newBulk(t, &bulkIngestor{}))
		body := bytes.NewBufferString(`{"videoUrl": "https://cdn/a.mp4", "metaData": {"objective": "sales"}}`)
		rec := serve(r, http.MethodPost, "/public/embedding-service/v1/embeddings/upload", body, "application/json")

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		out := decode(t, rec)
		_, hasError := out["error"]
		assert.Equal(t, !tc.hidden, hasError, tc.err.Error())
	}
}

func TestUpload(t *testing.T) {
	r := newRouter(&fakePredictor{}, newBulk(t, &bulkIngestor{}))
	path := "/public/embedding-service/v1/embeddings/upload"

	rec := serve(r, http.MethodPost, path, bytes.NewBufferString(`{"videoUrl": "https://cdn/a.mp4", "metaData": {"objective": "sales"}}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "sales", data["namespace"])

	rec = serve(r, http.MethodPost, path, bytes.NewBufferString(`{"videoUrl": "https://cdn/a.mp4"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(r, http.MethodPost, path, bytes.NewBufferString(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkUploadAndStatus(t *testing.T) {
	ingestor := &bulkIngestor{release: make(chan struct{})}
	r := newRouter(&fakePredictor{}, newBulk(t, ingestor))
	base := "/public/embedding-service/v1/embeddings/bulk/"

	body, ct := multipartBody(t, "application/json", []byte(test.GetTestBulkFileText()), nil)
	rec := serve(r, http.MethodPost, base+"upload", body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	id, _ := data["batchId"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "PENDING", data["status"])

	// The worker is held, so the snapshot still shows unfinished items.
	rec = serve(r, http.MethodGet, base+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)["data"].(map[string]any)
	require.Len(t, status["items"], 2)
	assert.NotEqual(t, "COMPLETED", status["items"].([]any)[1].(map[string]any)["state"])

	close(ingestor.release)
	rec = serve(r, http.MethodGet, base+id+"?wait=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status = decode(t, rec)["data"].(map[string]any)
	for _, item := range status["items"].([]any) {
		assert.Equal(t, "COMPLETED", item.(map[string]any)["state"])
	}
	assert.Equal(t, []string{"https://cdn.example.com/ads/a.mp4", "gs://ugc_videos/b.mp4"}, ingestor.urls)

	rec = serve(r, http.MethodGet, base+"unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(r, http.MethodGet, base+id+"?wait=soon", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "application/json", []byte(`{"data": []}`), nil)
	rec = serve(r, http.MethodPost, base+"upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchRouteOnlyWhenConfigured(t *testing.T) {
	r := newRouter(&fakePredictor{}, newBulk(t, &bulkIngestor{}))
	rec := serve(r, http.MethodPost, "/public/embedding-service/v1/embeddings/search", bytes.NewBufferString(`{}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysis(t *testing.T) {
	r := newRouter(&fakePredictor{}, newBulk(t, &bulkIngestor{}))
	body, ct := multipartBody(t, "video/webm", []byte("webm"), map[string]string{"type": "app installs"})
	rec := serve(r, http.MethodPost, "/public/embedding-service/v1/analysis", body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "app installs", data["objective"])
}

func TestHealth(t *testing.T) {
	rec := serve(newRouter(&fakePredictor{}, newBulk(t, &bulkIngestor{})), http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "predictive-analysis-test", out["service"])
}

func TestStatusFor(t *testing.T) {
	code, _, known := api.StatusFor(fmt.Errorf("wrapped: %w", model.ErrBatchNotFound))
	assert.Equal(t, http.StatusNotFound, code)
	assert.True(t, known)

	code, _, known = api.StatusFor(&model.ExhaustedRetryError{Attempts: 3, Err: model.NewValidationError("bad")})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.True(t, known)
}
