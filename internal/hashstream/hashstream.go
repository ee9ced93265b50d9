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

// Package hashstream streams bytes through sha512 in fixed-size chunks,
// reporting progress at chunk boundaries and honoring context cancellation
// (spec §4.3 step 3, §5 "suspension points").
package hashstream

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"io"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// ProgressFunc is called after each chunk with the cumulative bytes
// processed so far (spec §5: "reporting progress (bytes_done) at chunk
// boundaries").
type ProgressFunc func(bytesDone int64)

// Hash streams r through sha512 in types.HashChunkSize chunks and returns
// the hex digest and total size. Cancellable at chunk boundaries.
func Hash(ctx context.Context, r io.Reader, onProgress ProgressFunc) (hash string, size int64, err error) {
	h := sha512.New()
	buf := make([]byte, types.HashChunkSize)

	for {
		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
			if onProgress != nil {
				onProgress(size)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", 0, readErr
		}
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// Copy streams src to dst in types.HashChunkSize chunks, reporting progress
// at chunk boundaries and honoring cancellation (spec §4.5.3 "File-copy
// discipline").
func Copy(ctx context.Context, dst io.Writer, src io.Reader, onProgress ProgressFunc) (written int64, err error) {
	buf := make([]byte, types.HashChunkSize)

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if onProgress != nil {
				onProgress(written)
			}
			if writeErr != nil {
				return written, writeErr
			}
			if wn != n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, readErr
		}
	}

	return written, nil
}
