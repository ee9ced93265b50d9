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

// Package restore replays an offsite delta chain against a working directory
// (spec §4.6.3): chain discovery, parallel per-entry staging, sequential
// instruction application, registration-order commit.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/davidbrownell/FileBackup/internal/metrics"
	"github.com/davidbrownell/FileBackup/internal/workerpool"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/archive"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
)

// OperationName is the metrics.EngineMetrics operation key recorded by Restore.
const OperationName = "restore.run"

// Options configures a Restore run (spec §4.6.3).
type Options struct {
	Name       string
	Source     datastore.FileBasedDataStore
	WorkingDir string

	Password      string
	Substitutions map[string]string

	Overwrite        bool
	ContinueOnErrors bool
	DryRun           bool

	ArchiveTool archive.Tool

	RunInParallel bool
	MaxParallel   int

	Logger *slog.Logger

	// Metrics, when set, records Restore's wall-clock latency.
	Metrics *metrics.EngineMetrics
}

// Result reports what Restore discovered and (unless DryRun) applied.
type Result struct {
	Chain        []string
	Instructions map[string][]Instruction
}

// Restore replays opts.Name's chain into opts.WorkingDir (spec §4.6.3).
func Restore(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tool := opts.ArchiveTool
	if tool == nil {
		tool = archive.NewSevenZipTool()
	}

	start := time.Now()
	if opts.Metrics != nil {
		defer func() { opts.Metrics.ObserveLatency(OperationName, time.Since(start)) }()
	}

	chain, err := discoverChain(ctx, opts.Source, opts.Name)
	if err != nil {
		return nil, err
	}

	// Step 3: stage every chain entry concurrently.
	degree := workerpool.Degree(opts.RunInParallel && opts.Source.ExecuteInParallel(), opts.MaxParallel)
	finalDirs := make([]string, len(chain))
	tasks := make([]func(ctx context.Context) error, len(chain))
	for i, entry := range chain {
		i, entry := i, entry
		tasks[i] = func(ctx context.Context) error {
			dir, err := stageEntry(ctx, opts.Source, opts.WorkingDir, opts.Name, entry, opts.Password, opts.ContinueOnErrors, tool, logger)
			if err != nil {
				return fmt.Errorf("restore: staging %q: %w", entry, err)
			}
			finalDirs[i] = dir
			return nil
		}
	}
	if err := workerpool.RunAll(ctx, degree, tasks); err != nil {
		return nil, err
	}

	// Step 4: build the flat content-addressed staging pool.
	stagingDir := filepath.Join(opts.WorkingDir, "staging")
	for _, dir := range finalDirs {
		if err := stageIntoPool(dir, stagingDir); err != nil {
			return nil, err
		}
	}

	// Step 5: build the instruction list per entry.
	instructions, err := buildInstructions(chain, finalDirs, opts.Substitutions)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		logInstructions(logger, chain, instructions)
		return &Result{Chain: chain, Instructions: instructions}, nil
	}

	// Step 6-7: apply sequentially per entry, per instruction, then commit
	// in registration order.
	if err := applyAndCommit(ctx, opts.WorkingDir, stagingDir, chain, instructions, opts.Overwrite, opts.ContinueOnErrors, logger); err != nil {
		return nil, err
	}

	return &Result{Chain: chain, Instructions: instructions}, nil
}

func logInstructions(logger *slog.Logger, chain []string, instructions map[string][]Instruction) {
	for _, entry := range chain {
		for _, instr := range instructions[entry] {
			logger.Info("restore instruction",
				"entry", entry,
				"operation", instr.Operation.String(),
				"local_path", instr.LocalPath,
				"original_path", instr.OriginalPath,
			)
		}
	}
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
