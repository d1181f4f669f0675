/*
Copyright 2025 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package xerrors defines the closed set of error kinds the control plane's
// core components (store, reconciler, API surface) branch on. Each kind maps
// to exactly one policy in the reconciler and the REST layer; see
// reconciler.Reconcile and api.writeStoreError.
package xerrors

import (
	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Kind identifies one of the error classes handled by the core. String
// kinds keep errors.Is comparisons cheap and avoid a sentinel-per-kind
// proliferation.
type Kind string

// The closed set of kinds the core dispatches on.
const (
	KindUnknownKind        Kind = "UnknownKind"
	KindNotFound           Kind = "NotFound"
	KindAlreadyExists      Kind = "AlreadyExists"
	KindDependencyNotReady Kind = "DependencyNotReady"
	KindProviderTransient  Kind = "ProviderTransient"
	KindProviderPermanent  Kind = "ProviderPermanent"
	KindChildSideEffect    Kind = "ChildSideEffectFailed"
	KindParseError         Kind = "ParseError"
	// KindInvalidArgument is a client-supplied value the Resource Store
	// rejects outright (e.g. a name that fails DNS-1123 validation) - a
	// 4xx to the client, never a retriable or server-side condition.
	KindInvalidArgument Kind = "InvalidArgument"
)

// A KindError carries one of the Kind values above alongside the
// human-readable cause. Components that need to react differently per kind
// use Is, not type assertions.
type KindError struct {
	kind  Kind
	cause error
}

func (e *KindError) Error() string {
	if e.cause == nil {
		return string(e.kind)
	}
	return string(e.kind) + ": " + e.cause.Error()
}

func (e *KindError) Unwrap() error { return e.cause }

// New constructs a KindError of the given kind wrapping msg.
func New(k Kind, msg string) error {
	return &KindError{kind: k, cause: errors.New(msg)}
}

// Wrap constructs a KindError of the given kind wrapping err with msg. It
// returns nil if err is nil, matching errors.Wrap's convention.
func Wrap(err error, k Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &KindError{kind: k, cause: errors.Wrap(err, msg)}
}

// Is reports whether err (or something it wraps) is a KindError of kind k.
func Is(err error, k Kind) bool {
	var ke *KindError
	for err != nil {
		if e, ok := err.(*KindError); ok { //nolint:errorlint // we also unwrap manually below
			ke = e
			break
		}
		err = errors.Unwrap(err)
	}
	return ke != nil && ke.kind == k
}

// KindOf returns the Kind of err if it is (or wraps) a KindError, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*KindError); ok { //nolint:errorlint
			return e.kind, true
		}
		err = errors.Unwrap(err)
	}
	return "", false
}
