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

// Command filebackup wires the mirror, offsite and restore engines to a
// thin flag-based CLI. Argument parsing and UX polish are explicitly out of
// scope for the engines themselves; this is the minimal glue that lets them
// run standalone.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/davidbrownell/FileBackup/internal/metrics"
	"github.com/davidbrownell/FileBackup/pkg/cli"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/mirror"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/offsite"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/restore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "mirror":
		err = runMirror(ctx, os.Args[2:], logger)
	case "offsite":
		err = runOffsite(ctx, os.Args[2:], logger)
	case "restore":
		err = runRestore(ctx, os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("filebackup failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: filebackup <mirror|offsite|restore> [flags]")
}

func commaList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func runMirror(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("mirror", flag.ExitOnError)
	dest := fs.String("dest", "", "destination directory (local filesystem)")
	inputs := fs.String("inputs", "", "comma-separated list of source files/directories")
	force := fs.Bool("force", false, "treat the destination as empty")
	hashes := fs.Bool("hashes", true, "compute content hashes")
	parallel := fs.Bool("parallel", true, "run copy tasks concurrently")
	include := fs.String("include", "", "comma-separated include globs")
	exclude := fs.String("exclude", "", "comma-separated exclude globs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dest == "" || *inputs == "" {
		return fmt.Errorf("mirror: -dest and -inputs are required")
	}

	source, err := datastore.NewLocalFileSystemDataStore(".")
	if err != nil {
		return err
	}
	destStore, err := datastore.NewLocalFileSystemDataStore(*dest)
	if err != nil {
		return err
	}

	m := metrics.NewEngineMetrics()
	result, err := mirror.Backup(ctx, commaList(*inputs), source, destStore, mirror.Options{
		Force:           *force,
		RunInParallel:   *parallel,
		CalculateHashes: *hashes,
		Filter:          &snapshot.IncludeExclude{Include: commaList(*include), Exclude: commaList(*exclude)},
		Logger:          logger,
		Metrics:         m,
	})
	if err != nil {
		return err
	}
	snap := m.Snapshot(mirror.OperationName)
	logger.Info("mirror complete", "diffs", len(result.Diffs), "bytes_written", result.BytesWritten, "latency_us_p50", snap.P50)
	return nil
}

func runOffsite(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("offsite", flag.ExitOnError)
	name := fs.String("name", "", "backup name")
	stateDir := fs.String("state-dir", "", "state directory (defaults to resolved FILEBACKUP_STATE_DIR)")
	workingDir := fs.String("working-dir", "", "local staging directory")
	inputs := fs.String("inputs", "", "comma-separated list of source files/directories")
	destURL := fs.String("dest", "none", "destination URL (spec destination grammar)")
	compress := fs.Bool("compress", false, "pack the staged directory with 7z")
	password := fs.String("password", "", "7z encryption password")
	force := fs.Bool("force", false, "ignore any prior committed snapshot")
	ignorePending := fs.Bool("ignore-pending", false, "delete a conflicting pending snapshot and proceed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *inputs == "" {
		return fmt.Errorf("offsite: -name and -inputs are required")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if *stateDir == "" {
		*stateDir, err = cli.ResolveStateDir(cwd)
		if err != nil {
			return err
		}
	}
	if *workingDir == "" {
		*workingDir = cwd
	}

	source, err := datastore.NewLocalFileSystemDataStore(".")
	if err != nil {
		return err
	}
	dest, err := datastore.ParseDestinationURL(*destURL)
	if err != nil {
		return err
	}

	m := metrics.NewEngineMetrics()
	result, err := offsite.Backup(ctx, commaList(*inputs), source, offsite.Options{
		Name:                  *name,
		StateDir:              *stateDir,
		WorkingDir:            *workingDir,
		Force:                 *force,
		IgnorePendingSnapshot: *ignorePending,
		RunInParallel:         true,
		CalculateHashes:       true,
		Compress:              *compress,
		EncryptionPassword:    *password,
		Destination:           dest.File,
		Bulk:                  dest.Bulk,
		Logger:                logger,
		Metrics:               m,
	})
	if err != nil {
		return err
	}
	snap := m.Snapshot(offsite.OperationName)
	logger.Info("offsite complete", "empty", result.Empty, "dir", result.DirName, "new_blobs", result.NewBlobs, "latency_us_p50", snap.P50)
	return nil
}

func runRestore(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	name := fs.String("name", "", "backup name")
	sourceURL := fs.String("source", "", "source URL (same grammar as destination)")
	workingDir := fs.String("working-dir", "", "directory to restore into")
	password := fs.String("password", "", "7z decryption password")
	overwrite := fs.Bool("overwrite", false, "overwrite existing files")
	continueOnErrors := fs.Bool("continue-on-errors", false, "warn and continue past verification failures")
	dryRun := fs.Bool("dry-run", false, "log the instruction list without applying it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *sourceURL == "" || *workingDir == "" {
		return fmt.Errorf("restore: -name, -source and -working-dir are required")
	}

	src, err := datastore.ParseDestinationURL(*sourceURL)
	if err != nil {
		return err
	}
	if src.File == nil {
		return fmt.Errorf("restore: -source must resolve to a file-based store")
	}

	m := metrics.NewEngineMetrics()
	result, err := restore.Restore(ctx, restore.Options{
		Name:             *name,
		Source:           src.File,
		WorkingDir:       *workingDir,
		Password:         *password,
		Overwrite:        *overwrite,
		ContinueOnErrors: *continueOnErrors,
		DryRun:           *dryRun,
		RunInParallel:    true,
		Logger:           logger,
		Metrics:          m,
	})
	if err != nil {
		return err
	}
	snap := m.Snapshot(restore.OperationName)
	logger.Info("restore complete", "chain_length", len(result.Chain), "latency_us_p50", snap.P50)
	return nil
}
