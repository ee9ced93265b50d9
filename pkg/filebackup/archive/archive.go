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

// Package archive models the optional packaging step of an offsite backup
// (spec §4.6.1 step 6, §6.2): split, solid, optionally AES-encrypted
// 7z volumes, produced by shelling out to whichever of "7z"/"7zz" the host
// provides. The tool invocation itself is explicitly out of scope for the
// core (spec §1) — this package is the thin, real contract the offsite
// engine calls through.
package archive

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// DefaultVolumeSize is the default split-archive volume size in bytes
// (spec §6.2): 250 MiB.
const DefaultVolumeSize int64 = 262_144_000

// MinVolumeSize is the minimum accepted split-archive volume size (spec §6.2).
const MinVolumeSize int64 = 1024

// PackOptions configures CreatePacked.
type PackOptions struct {
	// SourceDir is packaged as data.7z.NNN volumes inside DestDir.
	SourceDir string
	DestDir   string

	// Password, when non-empty, enables AES-256 encryption with header
	// encryption (spec §6.2).
	Password string

	// VolumeSize defaults to DefaultVolumeSize when <= 0; values below
	// MinVolumeSize are clamped up to it.
	VolumeSize int64
}

// Tool is the archive-tool contract the offsite engine depends on.
type Tool interface {
	// CreatePacked produces data.7z.NNN volumes under opts.DestDir from
	// opts.SourceDir, then validates the result with an integrity check.
	CreatePacked(ctx context.Context, opts PackOptions) error

	// Unpack decompresses every data.7z.NNN volume found in srcDir into
	// destDir, using password (possibly empty or bogus to satisfy tools
	// that require a non-empty value — spec §4.6.3 step 3b).
	Unpack(ctx context.Context, srcDir, destDir, password string) error

	// Validate runs the tool's own integrity check over the volumes in dir
	// without extracting.
	Validate(ctx context.Context, dir, password string) error
}

var (
	binOnce sync.Once
	binName string
	binErr  error
)

// resolveBinary discovers whether "7z" or "7zz" is on PATH, once per
// process (spec §9 "process-wide singletons": "the archive-tool discovery
// (7z vs 7zz) is cached once per process with a one-shot init guard;
// record either the binary name or a sticky error").
func resolveBinary() (string, error) {
	binOnce.Do(func() {
		for _, candidate := range []string{"7zz", "7z"} {
			if path, err := exec.LookPath(candidate); err == nil {
				binName = path
				return
			}
		}
		binErr = fmt.Errorf("archive: neither 7zz nor 7z found on PATH")
	})
	return binName, binErr
}

// sevenZip is the default Tool, implemented as an os/exec wrapper.
type sevenZip struct{}

// NewSevenZipTool returns the default archive Tool.
func NewSevenZipTool() Tool { return &sevenZip{} }

func (sevenZip) CreatePacked(ctx context.Context, opts PackOptions) error {
	bin, err := resolveBinary()
	if err != nil {
		return err
	}

	volSize := opts.VolumeSize
	if volSize <= 0 {
		volSize = DefaultVolumeSize
	} else if volSize < MinVolumeSize {
		volSize = MinVolumeSize
	}

	args := []string{
		"a", "-t7z", "-m0=lzma2", "-mx=9", "-ms=on", "-mmt=on", "-scsUTF-8",
		fmt.Sprintf("-v%db", volSize),
	}
	if opts.Password != "" {
		args = append(args, "-p"+opts.Password, "-mhe=on")
	}
	args = append(args, opts.DestDir+"/data.7z", opts.SourceDir+"/.")

	if err := run(ctx, bin, args...); err != nil {
		return fmt.Errorf("archive: create: %w", err)
	}

	return sevenZip{}.Validate(ctx, opts.DestDir, opts.Password)
}

func (sevenZip) Unpack(ctx context.Context, srcDir, destDir, password string) error {
	bin, err := resolveBinary()
	if err != nil {
		return err
	}
	if password == "" {
		// Some tool builds refuse an interactive prompt; a bogus password
		// forces a clean failure on mismatch instead of a hang (spec
		// §4.6.3 step 3b).
		password = "-"
	}

	args := []string{"x", "-p" + password, "-y", "-o" + destDir, srcDir + "/data.7z.001"}
	return run(ctx, bin, args...)
}

func (sevenZip) Validate(ctx context.Context, dir, password string) error {
	bin, err := resolveBinary()
	if err != nil {
		return err
	}

	args := []string{"t"}
	if password != "" {
		args = append(args, "-p"+password)
	}
	args = append(args, dir+"/data.7z.001")

	return run(ctx, bin, args...)
}

func run(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", bin, args, err, out)
	}
	return nil
}
