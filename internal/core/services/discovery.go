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
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"
)

// SRVLookup is satisfied by *net.Resolver.
type SRVLookup interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// RequestSetting describes where an outbound request goes.
type RequestSetting struct {
	BaseURL             string
	Pathname            string
	UseSRV              bool
	ServiceDiscEndpoint string
}

// ServiceResolver turns SRV names into base URLs.
type ServiceResolver struct {
	Lookup   SRVLookup
	Executor *RetryableRequestExecutor
}

func NewServiceResolver() *ServiceResolver {
	return &ServiceResolver{Lookup: net.DefaultResolver, Executor: NewRetryableRequestExecutor()}
}

// ResolveSRVURL looks name up (with retries) and returns http://target:port for
// one record picked at random.
func (r *ServiceResolver) ResolveSRVURL(ctx context.Context, name string) (string, error) {
	return RunWithBackoff(ctx, r.Executor, func(ctx context.Context) (string, error) {
		_, addrs, err := r.Lookup.LookupSRV(ctx, "", "", name)
		if err != nil {
			return "", fmt.Errorf("failed to resolve srv %s: %w", name, err)
		}
		if len(addrs) == 0 {
			return "", fmt.Errorf("failed to resolve srv %s: no records", name)
		}
		addr := addrs[rand.IntN(len(addrs))]
		return fmt.Sprintf("http://%s:%d", strings.TrimSuffix(addr.Target, "."), addr.Port), nil
	})
}

// ResolveURL builds the full request URL for setting.
func (r *ServiceResolver) ResolveURL(ctx context.Context, setting RequestSetting) (string, error) {
	if setting.UseSRV {
		if setting.Pathname == "" {
			return "", errors.New("srv requests need a pathname")
		}
		base, err := r.ResolveSRVURL(ctx, setting.ServiceDiscEndpoint)
		if err != nil {
			return "", err
		}
		return joinURL(base, setting.Pathname), nil
	}
	if setting.BaseURL == "" {
		return "", errors.New("request setting has no base url")
	}
	if setting.Pathname == "" {
		return setting.BaseURL, nil
	}
	return joinURL(setting.BaseURL, setting.Pathname), nil
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
