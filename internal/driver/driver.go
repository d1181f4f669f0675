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

// Package driver implements the Provider Driver abstraction: per-kind
// adapters translating a desired spec into external API calls. The
// concrete HTTP clients that would talk to a real cloud provider are out
// of scope here - these drivers simulate their external system
// in-memory, which is all the reconciler's contract with a Driver
// actually requires.
package driver

import (
	"context"
	"encoding/json"

	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// ListedObject is one object as reported by a Driver's List.
type ListedObject struct {
	Name string
	ID   string
}

// CreateResult is what a successful (or adopted) Create returns: the
// provider-assigned id and, for network-exposed kinds, an endpoint.
type CreateResult struct {
	ExternalID string
	Endpoint   string
	// Extra carries driver-specific identifiers that don't fit ExternalID/
	// Endpoint - the composite ReleaseDeploy driver uses this to surface its
	// derived children's ids (and any per-child error) alongside the owning
	// instance's own id.
	Extra map[string]string
}

// Binding is one entry of a bound-object list.
type Binding struct {
	Name string
	Type string
	ID   string
}

// Driver is the Provider Driver contract every kind must implement.
type Driver interface {
	// Create provisions an external object for spec under the deterministic
	// name. It returns a KindAlreadyExists error (see internal/xerrors) when
	// the provider reports the name is taken; callers then adopt via List.
	Create(ctx context.Context, spec json.RawMessage, name string) (CreateResult, error)
	// List enumerates every external object the driver's provider holds
	// for this kind, used for adoption and orphan detection.
	List(ctx context.Context) ([]ListedObject, error)
	// Delete removes the external object with the given provider id.
	// Deletion is best-effort: deleting an id the provider no longer has is
	// not an error.
	Delete(ctx context.Context, id string) error
}

// BindingDriver is the optional capability implemented by kinds that
// carry bindings to other resources.
type BindingDriver interface {
	GetBindings(ctx context.Context, id string) ([]Binding, error)
	PutBindings(ctx context.Context, id string, bindings []Binding) error
}

// HealthDriver is the optional capability for network-exposed kinds that
// support a health probe.
type HealthDriver interface {
	Health(ctx context.Context, endpoint string) error
}

// CompositeDriver is the optional capability for a kind whose single
// reconcile actually provisions or tears down a fixed chain of derived
// instances of other kinds (the ReleaseDeploy pattern). The reconciler
// checks for this capability the same way it checks for BindingDriver and
// HealthDriver - a type assertion at the call site, not a field on
// Driver itself, since only one kind in this system needs it.
type CompositeDriver interface {
	Driver
	CreateComposite(ctx context.Context, spec json.RawMessage, name string) (CompositeResult, error)
	DeleteComposite(ctx context.Context, releaseID, versionID, deployID string) error
}

// CompositeResult is what CompositeDriver's CreateComposite returns: the
// primary (owning) object's id plus whatever of the two derived children
// succeeded.
type CompositeResult struct {
	CreateResult
	// ChildIDs holds the derived children's provider ids by role ("version",
	// "deploy") for those that were created successfully.
	ChildIDs map[string]string
	// ChildErrors holds the error message for any derived child that failed
	// to provision, by the same role keys. A non-empty ChildErrors means
	// the reconciler should land on PartiallyReady rather than Ready.
	ChildErrors map[string]string
}

// IsAlreadyExists reports whether err is the AlreadyExists signal a Driver's
// Create returns when the deterministic name is already taken.
func IsAlreadyExists(err error) bool {
	return xerrors.Is(err, xerrors.KindAlreadyExists)
}
