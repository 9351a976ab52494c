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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
)

// CloudPlatformScope is the OAuth scope requested for Vertex AI calls.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// CredentialProvider hands out bearer tokens for outbound Google API calls.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// GoogleCredentialProvider caches the access token of a service account and only
// refreshes it once the token is within EarlyExpiry of its expiry.
type GoogleCredentialProvider struct {
	source      auth.TokenProvider
	earlyExpiry time.Duration
	now         func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewGoogleCredentialProvider detects credentials from credentialFile, or from the
// application default chain when credentialFile is empty.
func NewGoogleCredentialProvider(credentialFile string, earlyExpiry time.Duration) (*GoogleCredentialProvider, *auth.Credentials, error) {
	creds, err := DetectCredentials(credentialFile)
	if err != nil {
		return nil, nil, err
	}
	return NewCachedCredentialProvider(creds, earlyExpiry), creds, nil
}

// DetectCredentials resolves the cloud-platform credentials for a key file.
func DetectCredentials(credentialFile string) (*auth.Credentials, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{CloudPlatformScope},
		CredentialsFile: credentialFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect google credentials: %w", err)
	}
	return creds, nil
}

// NewCachedCredentialProvider wraps any token source with the expiry cache.
func NewCachedCredentialProvider(source auth.TokenProvider, earlyExpiry time.Duration) *GoogleCredentialProvider {
	return &GoogleCredentialProvider{source: source, earlyExpiry: earlyExpiry, now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (g *GoogleCredentialProvider) WithClock(now func() time.Time) *GoogleCredentialProvider {
	g.now = now
	return g
}

// Token returns the cached token, fetching a new one when the cache is empty or
// the cached token is about to expire.
func (g *GoogleCredentialProvider) Token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && g.now().Before(g.expiry.Add(-g.earlyExpiry)) {
		return g.token, nil
	}
	t, err := g.source.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	if t == nil || t.Value == "" {
		return "", errors.New("credential source returned an empty token")
	}
	g.token = t.Value
	g.expiry = t.Expiry
	if g.expiry.IsZero() {
		// Tokens without an expiry are treated as valid for an hour.
		g.expiry = g.now().Add(time.Hour)
	}
	return g.token, nil
}

// StaticCredentialProvider always returns the same token. Used in tests and for
// local runs against an emulator.
type StaticCredentialProvider string

func (s StaticCredentialProvider) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", errors.New("static credential is empty")
	}
	return string(s), nil
}
