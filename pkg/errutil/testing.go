// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		t.Fatalf("expected oops error, got %T", err)
	}
	if got := oopsErr.Code(); got != code {
		t.Errorf("expected error code %q, got %v", code, got)
	}
}

// AssertErrorContext asserts that err is an oops error carrying the given
// context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		t.Fatalf("expected oops error, got %T", err)
	}
	ctx := oopsErr.Context()
	got, present := ctx[key]
	if !present {
		t.Fatalf("expected error context to contain key %q, context: %v", key, ctx)
	}
	if got != value {
		t.Errorf("expected context[%q] = %v, got %v", key, value, got)
	}
}
