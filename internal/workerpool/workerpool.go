// Copyright 2025 Oppie Thunder Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workerpool provides the bounded-parallelism worker pool described
// in spec §5: "a bounded-parallelism worker pool (one thread per logical
// file operation)". Degree degrades to 1 when the caller's data store
// reports ExecuteInParallel()==false.
package workerpool

import (
	"context"
	"sync"

	"github.com/JekaMas/workerpool"
)

// RunAll submits one task per item to a pool of the given size (at least
// 1) and waits for all of them to finish, honoring ctx cancellation.
// Returns the first non-nil error encountered, if any — all other tasks
// still run to completion (spec §5 does not specify fail-fast semantics,
// and the mirror/offsite callers need every task's side effect to settle
// before deciding how to proceed).
func RunAll(ctx context.Context, size int, tasks []func(ctx context.Context) error) error {
	if size < 1 {
		size = 1
	}
	if len(tasks) == 0 {
		return nil
	}

	pool := workerpool.New(size)

	var (
		mu      sync.Mutex
		firstErr error
	)

	for _, task := range tasks {
		task := task
		pool.Submit(func() {
			select {
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			default:
			}

			if err := task(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}

	pool.StopWait()
	return firstErr
}

// Degree picks the worker-pool size for an operation against a store that
// reports executeInParallel, per spec §5.
func Degree(executeInParallel bool, maxParallel int) int {
	if !executeInParallel {
		return 1
	}
	if maxParallel < 1 {
		return 1
	}
	return maxParallel
}
