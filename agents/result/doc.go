/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package result turns free-form model output into typed values.
//
// Models frequently wrap JSON payloads in markdown code fences or pad them
// with prose. ExtractJSON peels those wrappers off, and Extract unmarshals
// the payload into a caller-supplied type. A payload that cannot be parsed
// yields an error matching ErrMalformed so callers can route the failure
// explicitly instead of letting parse ambiguity leak downstream.
package result
