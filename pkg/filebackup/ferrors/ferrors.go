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

// Package ferrors defines the error taxonomy of spec §7, one exported type
// per row, each wrapping an optional underlying cause.
package ferrors

import "fmt"

// InvalidInput covers a nonexistent source path, an unsupported destination
// scheme, or overlapping inputs.
type InvalidInput struct {
	Reason string
	Cause  error
}

func (e *InvalidInput) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}
func (e *InvalidInput) Unwrap() error { return e.Cause }

// Overlap fires when a destination is nested under a source.
type Overlap struct {
	Source, Destination string
}

func (e *Overlap) Error() string {
	return fmt.Sprintf("destination %q overlaps with source %q", e.Destination, e.Source)
}

// InsufficientSpace fires when bytes_required > 0.85 * bytes_available.
type InsufficientSpace struct {
	Required, Available int64
}

func (e *InsufficientSpace) Error() string {
	return fmt.Sprintf("insufficient space: need %d bytes, only %d available (at 85%% threshold)", e.Required, e.Available)
}

// ScanFailed wraps errors encountered during discovery or hashing.
type ScanFailed struct {
	Errors []error
}

func (e *ScanFailed) Error() string {
	return fmt.Sprintf("scan failed with %d error(s): %v", len(e.Errors), e.Errors[0])
}
func (e *ScanFailed) Unwrap() []error { return e.Errors }

// MissingSnapshot fires when Validate or Restore is attempted with no prior
// persisted snapshot.
type MissingSnapshot struct {
	Path string
}

func (e *MissingSnapshot) Error() string {
	return fmt.Sprintf("no persisted snapshot at %q", e.Path)
}

// PendingSnapshotConflict fires when an offsite backup runs while a
// __pending__ snapshot exists and ignore_pending_snapshot is false.
type PendingSnapshotConflict struct {
	Name string
}

func (e *PendingSnapshotConflict) Error() string {
	return fmt.Sprintf("backup %q has an uncommitted pending snapshot; run commit first (or pass ignore_pending_snapshot)", e.Name)
}

// CorruptArchive fires on a hash mismatch or archive validation failure.
type CorruptArchive struct {
	Path  string
	Cause error
}

func (e *CorruptArchive) Error() string {
	return fmt.Sprintf("corrupt archive content at %q: %v", e.Path, e.Cause)
}
func (e *CorruptArchive) Unwrap() error { return e.Cause }

// DecompressFailed fires when archive decompression fails (e.g. wrong password).
type DecompressFailed struct {
	Path  string
	Cause error
}

func (e *DecompressFailed) Error() string {
	return fmt.Sprintf("decompress failed for %q: %v", e.Path, e.Cause)
}
func (e *DecompressFailed) Unwrap() error { return e.Cause }

// OverwriteBlocked fires on a restore "add" whose target exists and overwrite
// was not requested.
type OverwriteBlocked struct {
	Path string
}

func (e *OverwriteBlocked) Error() string {
	return fmt.Sprintf("refusing to overwrite existing path %q", e.Path)
}

// IO wraps a low-level read/write/rename failure. Partial mirror state is
// recoverable via Cleanup; a partial offsite run is left on disk for
// inspection.
type IO struct {
	Op    string
	Path  string
	Cause error
}

func (e *IO) Error() string {
	return fmt.Sprintf("io error during %s %q: %v", e.Op, e.Path, e.Cause)
}
func (e *IO) Unwrap() error { return e.Cause }
