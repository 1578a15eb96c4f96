// Copyright 2026 The Dualview Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the error kinds shared across the workstation core:
// InvalidArgument, InvalidState, InvalidSQL, NotFound and LoadFailed. Each
// kind is a sentinel that callers can match with errors.Is after a
// fmt.Errorf("...: %w", ...) wrap.
package errs

import "errors"

// Sentinel error kinds. Wrap one of these with fmt.Errorf("context: %w", Kind)
// to produce a concrete error that still satisfies errors.Is(err, Kind).
var (
	// InvalidArgument marks bad input: a non-existent file on import, an
	// empty required field, a malformed reference.
	InvalidArgument = errors.New("invalid argument")

	// InvalidState marks an operation attempted on an object that is not in
	// the store, or attempted before the relevant subsystem initialized.
	InvalidState = errors.New("invalid state")

	// InvalidSQL wraps an underlying store error. Carries the driver code
	// and message in the wrapping fmt.Errorf text.
	InvalidSQL = errors.New("store error")

	// NotFound marks a resource lookup that was expected to succeed.
	NotFound = errors.New("not found")

	// LoadFailed marks a codec failure. The human-readable detail lives in
	// the wrapping error text, and for ImageCache also inside the
	// LoadedImage itself so viewers can display it without re-deriving it.
	LoadFailed = errors.New("load failed")
)
