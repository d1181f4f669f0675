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

package api

import (
	"net/http"

	"github.com/crossplane/mini-controlplane/internal/store"
)

// CRDGroup is the fixed built-in group CRD management lives under.
// Modeled on Kubernetes' own apiextensions.k8s.io.
const CRDGroup = "apiextensions.mini-controlplane.io"

const crdGroupVersion = CRDGroup + "/v1"

const crdPlural = "customresourcedefinitions"

// APIGroup is one entry of APIGroupList, the discovery surface.
type APIGroup struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
}

// APIGroupList is the response to GET /apis.
type APIGroupList struct {
	Kind   string     `json:"kind"`
	Groups []APIGroup `json:"groups"`
}

// APIResource is one entry of APIResourceList: a (group,version)'s
// discoverable kinds.
type APIResource struct {
	Name       string `json:"name"` // plural
	Kind       string `json:"kind"`
	Namespaced bool   `json:"namespaced"`
}

// APIResourceList is the response to GET /apis/{group}/{version}.
type APIResourceList struct {
	Kind         string        `json:"kind"`
	GroupVersion string        `json:"groupVersion"`
	Resources    []APIResource `json:"resources"`
}

// listGroups handles GET /apis: every group with at least one stored CRD,
// plus the built-in CRD-management group.
func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	crds, err := h.store.ListCRDs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	versions := map[string]map[string]bool{CRDGroup: {"v1": true}}
	for _, c := range crds {
		if versions[c.Group] == nil {
			versions[c.Group] = map[string]bool{}
		}
		versions[c.Group][c.Version] = true
	}

	out := APIGroupList{Kind: "APIGroupList"}
	for group, vs := range versions {
		g := APIGroup{Name: group}
		for v := range vs {
			g.Versions = append(g.Versions, v)
		}
		out.Groups = append(out.Groups, g)
	}
	writeJSON(w, http.StatusOK, out)
}

// listVersions handles GET /apis/{group}: the distinct versions of CRDs in
// that group, via store.ListVersions.
func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	group := chiParam(r, "group")

	if group == CRDGroup {
		writeJSON(w, http.StatusOK, APIGroup{Name: CRDGroup, Versions: []string{"v1"}})
		return
	}

	vs, err := h.store.ListVersions(r.Context(), group)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIGroup{Name: group, Versions: vs})
}

// listGroupResources handles GET /apis/{group}/{version}: every kind
// registered for that exact (group, version).
func (h *Handler) listGroupResources(w http.ResponseWriter, r *http.Request) {
	group, version := chiParam(r, "group"), chiParam(r, "version")

	if group == CRDGroup {
		writeJSON(w, http.StatusOK, APIResourceList{
			Kind: "APIResourceList", GroupVersion: crdGroupVersion,
			Resources: []APIResource{{Name: crdPlural, Kind: crdKind, Namespaced: false}},
		})
		return
	}

	crds, err := h.store.ListCRDs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := APIResourceList{Kind: "APIResourceList", GroupVersion: group + "/" + version}
	for _, c := range crds {
		if c.Group != group || c.Version != version {
			continue
		}
		out.Resources = append(out.Resources, APIResource{
			Name: c.Plural, Kind: c.Kind, Namespaced: c.Scope == store.ScopeNamespaced,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
