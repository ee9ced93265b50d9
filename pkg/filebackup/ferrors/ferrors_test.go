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

package ferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInput_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("boom")
	e := &InvalidInput{Reason: "bad path", Cause: cause}
	assert.Contains(t, e.Error(), "bad path")
	assert.Contains(t, e.Error(), "boom")
	assert.ErrorIs(t, e, cause)
}

func TestInvalidInput_NoCause(t *testing.T) {
	e := &InvalidInput{Reason: "bad path"}
	assert.Equal(t, "invalid input: bad path", e.Error())
}

func TestScanFailed_UnwrapsAllErrors(t *testing.T) {
	e1, e2 := errors.New("one"), errors.New("two")
	e := &ScanFailed{Errors: []error{e1, e2}}
	assert.Contains(t, e.Error(), "2 error(s)")

	var unwrapped interface{ Unwrap() []error }
	assert.ErrorAs(t, error(e), &unwrapped)
	assert.Equal(t, []error{e1, e2}, unwrapped.Unwrap())
}

func TestCorruptArchive_Unwrap(t *testing.T) {
	cause := errors.New("hash mismatch")
	e := &CorruptArchive{Path: "x/data", Cause: cause}
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "x/data")
}

func TestInsufficientSpace_Message(t *testing.T) {
	e := &InsufficientSpace{Required: 100, Available: 50}
	assert.Contains(t, e.Error(), "100")
	assert.Contains(t, e.Error(), "50")
}

func TestOverwriteBlocked_Message(t *testing.T) {
	e := &OverwriteBlocked{Path: "foo/bar"}
	assert.Contains(t, e.Error(), "foo/bar")
}
