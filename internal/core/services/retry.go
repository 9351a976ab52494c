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
	"log/slog"
	"time"
)

// RetryableRequestExecutor is the retry policy of RunWithBackoff.
type RetryableRequestExecutor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Wait sleeps for d or until ctx is done. Defaults to SleepContext.
	Wait func(ctx context.Context, d time.Duration) error
}

// NewRetryableRequestExecutor returns the default policy of three attempts with a
// one second base delay.
func NewRetryableRequestExecutor() *RetryableRequestExecutor {
	return &RetryableRequestExecutor{MaxAttempts: 3, BaseDelay: time.Second, Wait: SleepContext}
}

// Delay returns the wait applied after the failed attempt with 0-based index n.
// The first failure is retried immediately, later ones wait 2^n * BaseDelay.
func (r *RetryableRequestExecutor) Delay(n int) time.Duration {
	if n == 0 {
		return 0
	}
	return (1 << n) * r.BaseDelay
}

// RunWithBackoff calls task until it succeeds or exec.MaxAttempts is reached. The
// last error is returned unchanged. A done ctx stops the loop with ctx.Err().
func RunWithBackoff[T any](ctx context.Context, exec *RetryableRequestExecutor, task func(ctx context.Context) (T, error)) (T, error) {
	if exec == nil {
		exec = NewRetryableRequestExecutor()
	}
	wait := exec.Wait
	if wait == nil {
		wait = SleepContext
	}
	attempts := max(exec.MaxAttempts, 1)

	var zero T
	var lastErr error
	for n := 0; n < attempts; n++ {
		out, err := task(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if n == attempts-1 {
			break
		}
		d := exec.Delay(n)
		slog.DebugContext(ctx, "retrying task", "attempt", n+1, "delay", d, "error", err)
		if err := wait(ctx, d); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// SleepContext sleeps for d, returning early with ctx.Err() when ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
