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

package store

import (
	"encoding/json"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Scope controls whether instances of a CRD live under a namespace or
// at the cluster level.
type Scope string

// The two scopes a CRD may declare. Scope defaults to Cluster when unset.
const (
	ScopeCluster    Scope = "Cluster"
	ScopeNamespaced Scope = "Namespaced"
)

// CRD is a custom resource definition: metadata describing a declarative
// kind that instances (Instance) may then be created against.
type CRD struct {
	Group      string
	Version    string
	Kind       string
	Plural     string
	ShortNames []string
	Schema     json.RawMessage
	Scope      Scope
	CreatedAt  time.Time
}

// Name is the CRD's primary key, "{plural}.{group}".
func (c CRD) Name() string {
	return c.Plural + "." + c.Group
}

// Instance is a concrete object of a CRD's kind.
type Instance struct {
	ID        string
	Group     string
	Version   string
	Plural    string
	Namespace string // empty for Cluster-scoped instances
	Name      string
	Spec      json.RawMessage
	Status    json.RawMessage
	CreatedAt time.Time
}

// Key uniquely identifies an Instance within the store: (group, version,
// plural, namespace, name) must be unique.
type Key struct {
	Group     string
	Version   string
	Plural    string
	Namespace string
	Name      string
}

// Key returns i's unique identity tuple.
func (i Instance) Key() Key {
	return Key{Group: i.Group, Version: i.Version, Plural: i.Plural, Namespace: i.Namespace, Name: i.Name}
}

// State is one of the values status.state may hold.
type State string

// The closed set of lifecycle states a resource instance moves through.
const (
	StatePending        State = "Pending"
	StateReady          State = "Ready"
	StatePartiallyReady State = "PartiallyReady"
	StateFailed         State = "Failed"
)

// DependencyRef is one entry of spec.dependencies[]. Group defaults to
// the depending resource's own group when omitted.
type DependencyRef struct {
	Group string `json:"group,omitempty"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
}

// BindingRef is one entry of spec.bindings[], used by kinds that carry
// bindings to other resources.
type BindingRef struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Group   string `json:"group,omitempty"`
	Kind    string `json:"kind"`
	RefName string `json:"refName"`
}

type specDependencies struct {
	Dependencies []DependencyRef `json:"dependencies,omitempty"`
}

type specBindings struct {
	Bindings []BindingRef `json:"bindings,omitempty"`
}

// ExtractDependencies reads spec.dependencies[] out of an opaque spec blob.
// A nil or empty spec yields no dependencies, not an error.
func ExtractDependencies(spec json.RawMessage) ([]DependencyRef, error) {
	if len(spec) == 0 {
		return nil, nil
	}
	var sd specDependencies
	if err := json.Unmarshal(spec, &sd); err != nil {
		return nil, errors.Wrap(err, "cannot parse spec.dependencies")
	}
	return sd.Dependencies, nil
}

// ExtractBindings reads spec.bindings[] out of an opaque spec blob.
func ExtractBindings(spec json.RawMessage) ([]BindingRef, error) {
	if len(spec) == 0 {
		return nil, nil
	}
	var sb specBindings
	if err := json.Unmarshal(spec, &sb); err != nil {
		return nil, errors.Wrap(err, "cannot parse spec.bindings")
	}
	return sb.Bindings, nil
}

// StatusView is the typed projection of an opaque status blob that the
// store and reconciler agree on. Driver-specific fields (e.g. the
// provider's "externalId") live alongside these in the same JSON object and are
// preserved via the Extra map rather than being named here, per the
// "opaque blob with typed views" design (see DESIGN.md).
type StatusView struct {
	State               State           `json:"state,omitempty"`
	Message             string          `json:"message,omitempty"`
	Error               string          `json:"error,omitempty"`
	PendingDependencies []DependencyRef `json:"pendingDependencies,omitempty"`
	LastDependencyCheck *time.Time      `json:"lastDependencyCheck,omitempty"`
	ReconciledAt        *time.Time      `json:"reconciledAt,omitempty"`
	LastHealthCheck     *time.Time      `json:"lastHealthCheck,omitempty"`
	HealthCheckStatus   string          `json:"healthCheckStatus,omitempty"`
	HealthCheckError    string          `json:"healthCheckError,omitempty"`

	// Extra carries driver-specific fields (external ids, endpoints, bound
	// object lists) that ride alongside the common view in the same JSON
	// object. It is never nil after DecodeStatus.
	Extra map[string]any `json:"-"`
}

// DecodeStatus parses an opaque status blob into its typed common view
// plus whatever driver-specific fields it carries. A malformed stored
// status is reported via the returned error; callers treat that as an
// empty status and continue.
func DecodeStatus(raw json.RawMessage) (StatusView, error) {
	v := StatusView{Extra: map[string]any{}}
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v.Extra); err != nil {
		return v, errors.Wrap(err, "cannot parse status")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, "cannot parse status")
	}
	return v, nil
}

// EncodeStatus serializes v back into a single opaque status blob,
// overlaying the typed common fields onto v.Extra so driver-specific keys
// survive the round trip.
func EncodeStatus(v StatusView) (json.RawMessage, error) {
	common, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode status")
	}
	merged := map[string]any{}
	for k, val := range v.Extra {
		merged[k] = val
	}
	var commonMap map[string]any
	if err := json.Unmarshal(common, &commonMap); err != nil {
		return nil, errors.Wrap(err, "cannot encode status")
	}
	for k, val := range commonMap {
		merged[k] = val
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode status")
	}
	return out, nil
}
