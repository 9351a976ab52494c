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

package api

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/model"
	"github.com/jaycherian/gcp-go-predictive-analysis/internal/core/services"
)

// FileField is the multipart field carrying uploads.
const FileField = "file"

// readUpload reads the multipart file field into memory, bounded by maxBytes.
func readUpload(c *gin.Context, maxBytes int64) ([]byte, string, error) {
	header, err := c.FormFile(FileField)
	if err != nil {
		return nil, "", model.NewValidationError("a %q file is required", FileField)
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, "", model.NewValidationError("file exceeds %d bytes", maxBytes)
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", model.NewValidationError("failed to open upload: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", model.NewValidationError("failed to read upload: %v", err)
	}
	if len(data) == 0 {
		return nil, "", model.NewValidationError("uploaded file is empty")
	}
	return data, header.Header.Get("Content-Type"), nil
}

// readVideoUpload reads the upload and rejects anything that is neither declared
// nor sniffed as a video.
func readVideoUpload(c *gin.Context, maxBytes int64) (*model.SourceVideo, error) {
	data, declared, err := readUpload(c, maxBytes)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(declared, "video/") && !services.IsVideo(data) {
		return nil, model.NewValidationError("uploaded file is not a video")
	}
	return &model.SourceVideo{Data: data, MIMEType: services.DetectMIME(data, declared)}, nil
}
