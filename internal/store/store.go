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

// Package store implements durable storage of CRDs and resource
// instances, exposing typed queries used by the API surface and the
// reconciler. The persistent KV/SQL backend itself is an abstract
// collaborator; Store is the contract an eventual durable implementation
// would satisfy. The shipped implementation, Memory, is an in-process,
// mutex-serialized reference store.
package store

import (
	"context"
	"encoding/json"
)

// Store is the Resource Store's contract.
type Store interface {
	// PutCRD inserts crd. It returns a KindAlreadyExists error (see
	// internal/xerrors) if a CRD with the same name already exists.
	PutCRD(ctx context.Context, crd CRD) (CRD, error)
	// GetCRD looks up a CRD by its identifying tuple.
	GetCRD(ctx context.Context, group, version, plural string) (CRD, error)
	// DeleteCRD removes the CRD named name and cascades deletion of every
	// instance matching its (group, version, plural).
	DeleteCRD(ctx context.Context, name string) error
	// ListCRDs returns every stored CRD.
	ListCRDs(ctx context.Context) ([]CRD, error)
	// ListVersions returns the distinct versions of CRDs in group.
	ListVersions(ctx context.Context, group string) ([]string, error)

	// PutResource creates an instance of the CRD identified by
	// (group, version, plural). If name is empty a fresh unique name is
	// generated. Returns a KindUnknownKind error if no matching CRD exists.
	PutResource(ctx context.Context, group, version, plural, namespace, name string, spec json.RawMessage) (Instance, error)
	// GetResource looks up a single instance by its full key.
	GetResource(ctx context.Context, group, version, plural, namespace, name string) (Instance, error)
	// ListResources lists instances, optionally filtered by kind, plural,
	// and namespace. kind is resolved to a plural via the matching CRD.
	ListResources(ctx context.Context, group, kind, plural, namespace string) ([]Instance, error)
	// PatchResourceSpec shallow-merges partial over the top-level keys of
	// the instance's stored spec - a shallow merge, not RFC 6902/7396 JSON
	// patch.
	PatchResourceSpec(ctx context.Context, group, version, plural, namespace, name string, partial json.RawMessage) (Instance, error)
	// DeleteResource removes a single instance, returning it as it was
	// immediately before deletion so callers (the API surface) can carry
	// its last-known status into a reconcile message.
	DeleteResource(ctx context.Context, group, version, plural, namespace, name string) (Instance, error)

	// SetStatus overwrites an instance's status. Idempotent: setting the
	// same status twice leaves the same state.
	SetStatus(ctx context.Context, group, version, plural, namespace, name string, status json.RawMessage) error
	// QueryPending returns instances of (group, kind) whose status.state is
	// Pending.
	QueryPending(ctx context.Context, group, kind string) ([]Instance, error)

	// FindDependents returns instances of every kind - across all
	// namespaces, since dependency edges are namespace-less lookups - whose
	// spec.dependencies[] references (depGroup, depKind, depName). Used by
	// the reconciler's post-provision fan-out.
	FindDependents(ctx context.Context, depGroup, depKind, depName string) ([]Instance, error)
}
