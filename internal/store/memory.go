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
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// Memory is an in-process Store implementation serialized by a single
// mutex: the store is the sole shared mutable state, and must serialize
// its own writes.
type Memory struct {
	mu   sync.RWMutex
	crds map[string]CRD          // keyed by CRD.Name()
	inst map[Key]Instance        // keyed by the instance's full identity tuple
	now  func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		crds: map[string]CRD{},
		inst: map[Key]Instance{},
		now:  time.Now,
	}
}

func validateName(kind, name string) error {
	for _, msg := range validation.IsDNS1123Subdomain(name) {
		return xerrors.New(xerrors.KindInvalidArgument, kind+" name "+name+" is invalid: "+msg)
	}
	return nil
}

// PutCRD implements Store.
func (m *Memory) PutCRD(_ context.Context, crd CRD) (CRD, error) {
	if err := validateName("CRD", crd.Name()); err != nil {
		return CRD{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.crds[crd.Name()]; ok {
		return CRD{}, xerrors.New(xerrors.KindAlreadyExists, "CRD "+crd.Name()+" already exists")
	}
	if crd.Scope == "" {
		crd.Scope = ScopeCluster
	}
	crd.CreatedAt = m.now()
	m.crds[crd.Name()] = crd
	return crd, nil
}

// GetCRD implements Store.
func (m *Memory) GetCRD(_ context.Context, group, version, plural string) (CRD, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	crd, ok := m.crds[plural+"."+group]
	if !ok || crd.Version != version {
		return CRD{}, xerrors.New(xerrors.KindNotFound, "CRD "+plural+"."+group+" not found")
	}
	return crd, nil
}

// DeleteCRD implements Store.
func (m *Memory) DeleteCRD(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	crd, ok := m.crds[name]
	if !ok {
		return xerrors.New(xerrors.KindNotFound, "CRD "+name+" not found")
	}
	delete(m.crds, name)

	for k, inst := range m.inst {
		if inst.Group == crd.Group && inst.Version == crd.Version && inst.Plural == crd.Plural {
			delete(m.inst, k)
		}
	}
	return nil
}

// ListCRDs implements Store.
func (m *Memory) ListCRDs(_ context.Context) ([]CRD, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CRD, 0, len(m.crds))
	for _, c := range m.crds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// ListVersions implements Store. Results are sorted by semver where the
// version string parses as one, falling back to lexical ordering for the
// rest (CRDs don't mandate semver-formatted versions).
func (m *Memory) ListVersions(_ context.Context, group string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[string]bool{}
	var versions []string
	for _, c := range m.crds {
		if c.Group != group || seen[c.Version] {
			continue
		}
		seen[c.Version] = true
		versions = append(versions, c.Version)
	}

	sort.Slice(versions, func(i, j int) bool {
		vi, ei := semver.NewVersion(versions[i])
		vj, ej := semver.NewVersion(versions[j])
		switch {
		case ei == nil && ej == nil:
			return vi.LessThan(vj)
		case ei == nil:
			return true
		case ej == nil:
			return false
		default:
			return versions[i] < versions[j]
		}
	})
	return versions, nil
}

func (m *Memory) crdFor(group, version, plural string) (CRD, bool) {
	crd, ok := m.crds[plural+"."+group]
	if !ok || crd.Version != version {
		return CRD{}, false
	}
	return crd, true
}

// crdsByKind returns every CRD in group whose Kind matches kind. Used to
// resolve the plural(s) backing QueryPending and ListResources, both of
// which are expressed in terms of kind.
func (m *Memory) crdsByKind(group, kind string) []CRD {
	var out []CRD
	for _, c := range m.crds {
		if c.Group == group && c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// PutResource implements Store.
func (m *Memory) PutResource(_ context.Context, group, version, plural, namespace, name string, spec json.RawMessage) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	crd, ok := m.crdFor(group, version, plural)
	if !ok {
		return Instance{}, xerrors.New(xerrors.KindUnknownKind, "no CRD for "+group+"/"+version+"/"+plural)
	}
	if crd.Scope == ScopeCluster {
		namespace = ""
	}

	if name == "" {
		name = plural + "-" + uuid.NewString()[:8]
	}
	if err := validateName(crd.Kind, name); err != nil {
		return Instance{}, err
	}

	key := Key{Group: group, Version: version, Plural: plural, Namespace: namespace, Name: name}
	if _, exists := m.inst[key]; exists {
		return Instance{}, xerrors.New(xerrors.KindAlreadyExists, "instance "+name+" already exists")
	}

	inst := Instance{
		ID:        uuid.NewString(),
		Group:     group,
		Version:   version,
		Plural:    plural,
		Namespace: namespace,
		Name:      name,
		Spec:      spec,
		CreatedAt: m.now(),
	}
	m.inst[key] = inst
	return inst, nil
}

// GetResource implements Store.
func (m *Memory) GetResource(_ context.Context, group, version, plural, namespace, name string) (Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.inst[Key{Group: group, Version: version, Plural: plural, Namespace: namespace, Name: name}]
	if !ok {
		return Instance{}, xerrors.New(xerrors.KindNotFound, "instance "+name+" not found")
	}
	return inst, nil
}

// ListResources implements Store.
func (m *Memory) ListResources(_ context.Context, group, kind, plural, namespace string) ([]Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plurals := map[string]bool{}
	if plural != "" {
		plurals[plural] = true
	}
	if kind != "" {
		for _, c := range m.crdsByKind(group, kind) {
			plurals[c.Plural] = true
		}
	}

	var out []Instance
	for _, inst := range m.inst {
		if inst.Group != group {
			continue
		}
		if len(plurals) > 0 && !plurals[inst.Plural] {
			continue
		}
		if namespace != "" && inst.Namespace != namespace {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PatchResourceSpec implements Store. The merge is intentionally shallow:
// only top-level keys of partial overlay the stored spec.
func (m *Memory) PatchResourceSpec(_ context.Context, group, version, plural, namespace, name string, partial json.RawMessage) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key{Group: group, Version: version, Plural: plural, Namespace: namespace, Name: name}
	inst, ok := m.inst[key]
	if !ok {
		return Instance{}, xerrors.New(xerrors.KindNotFound, "instance "+name+" not found")
	}

	merged, err := shallowMergeJSON(inst.Spec, partial)
	if err != nil {
		return Instance{}, errors.Wrap(err, "cannot patch spec")
	}
	inst.Spec = merged
	m.inst[key] = inst
	return inst, nil
}

// shallowMergeJSON overlays the top-level keys of patch onto base, leaving
// every other top-level key of base untouched. Nested objects are replaced
// wholesale, never recursively merged - this is deliberately not RFC
// 6902/7396 JSON merge patch.
func shallowMergeJSON(base, patch json.RawMessage) (json.RawMessage, error) {
	baseMap := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &baseMap); err != nil {
			return nil, err
		}
	}
	patchMap := map[string]json.RawMessage{}
	if len(patch) > 0 {
		if err := json.Unmarshal(patch, &patchMap); err != nil {
			return nil, err
		}
	}
	for k, v := range patchMap {
		baseMap[k] = v
	}
	return json.Marshal(baseMap)
}

// DeleteResource implements Store.
func (m *Memory) DeleteResource(_ context.Context, group, version, plural, namespace, name string) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key{Group: group, Version: version, Plural: plural, Namespace: namespace, Name: name}
	inst, ok := m.inst[key]
	if !ok {
		return Instance{}, xerrors.New(xerrors.KindNotFound, "instance "+name+" not found")
	}
	delete(m.inst, key)
	return inst, nil
}

// SetStatus implements Store.
func (m *Memory) SetStatus(_ context.Context, group, version, plural, namespace, name string, status json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key{Group: group, Version: version, Plural: plural, Namespace: namespace, Name: name}
	inst, ok := m.inst[key]
	if !ok {
		return xerrors.New(xerrors.KindNotFound, "instance "+name+" not found")
	}
	inst.Status = status
	m.inst[key] = inst
	return nil
}

// QueryPending implements Store.
func (m *Memory) QueryPending(_ context.Context, group, kind string) ([]Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plurals := map[string]bool{}
	for _, c := range m.crdsByKind(group, kind) {
		plurals[c.Plural] = true
	}

	var out []Instance
	for _, inst := range m.inst {
		if inst.Group != group || !plurals[inst.Plural] {
			continue
		}
		view, err := DecodeStatus(inst.Status)
		if err != nil {
			// Treated as empty status: an instance with unparseable status
			// is neither Pending nor anything else, so it's excluded
			// rather than erroring the whole query.
			continue
		}
		if view.State == StatePending {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindDependents implements Store.
func (m *Memory) FindDependents(_ context.Context, depGroup, depKind, depName string) ([]Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Instance
	for _, inst := range m.inst {
		deps, err := ExtractDependencies(inst.Spec)
		if err != nil {
			continue
		}
		for _, d := range deps {
			group := d.Group
			if group == "" {
				group = inst.Group
			}
			if group == depGroup && d.Kind == depKind && d.Name == depName {
				out = append(out, inst)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
