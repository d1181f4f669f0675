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

// Package api implements the REST surface over the Resource Store,
// routed with go-chi/chi/v5. It emits reconcile messages to the Work
// Queue on create and delete of resource instances.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/crossplane/mini-controlplane/internal/queue"
	"github.com/crossplane/mini-controlplane/internal/store"
	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// Handler serves the REST surface over a Resource Store, emitting
// reconcile messages to a Work Queue on mutation.
type Handler struct {
	store store.Store
	queue queue.Queue
	log   logging.Logger
	now   func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the Handler's logger.
func WithLogger(log logging.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New returns a Handler backed by st and emitting to q.
func New(st store.Store, q queue.Queue, opts ...Option) *Handler {
	h := &Handler{store: st, queue: q, log: logging.NewNopLogger(), now: time.Now}
	for _, f := range opts {
		f(h)
	}
	return h
}

// Router builds the chi.Router serving every endpoint.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/apis", h.listGroups)
	r.Route("/apis/{group}", func(r chi.Router) {
		r.Get("/", h.listVersions)
		r.Route("/{version}", func(r chi.Router) {
			r.Get("/", h.listGroupResources)

			r.Route("/{plural}", func(r chi.Router) {
				r.Get("/", h.listCluster)
				r.Post("/", h.createCluster)
				r.Get("/{name}", h.getCluster)
				r.Patch("/{name}", h.patchCluster)
				r.Delete("/{name}", h.deleteCluster)
			})

			r.Route("/namespaces/{namespace}/{plural}", func(r chi.Router) {
				r.Get("/", h.listNamespaced)
				r.Post("/", h.createNamespaced)
				r.Get("/{name}", h.getNamespaced)
				r.Patch("/{name}", h.patchNamespaced)
				r.Delete("/{name}", h.deleteNamespaced)
			})
		})
	})

	return r
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// -- cluster-scoped resources (and, special-cased, CRD management) --

func (h *Handler) listCluster(w http.ResponseWriter, r *http.Request) {
	group, version, plural := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural")

	if group == CRDGroup && plural == crdPlural {
		h.listCRDs(w, r)
		return
	}

	insts, err := h.store.ListResources(r.Context(), group, "", plural, "")
	if err != nil {
		writeStoreError(w, err)
		return
	}

	kind := h.kindFor(r, group, version, plural)
	if wantsTable(r) {
		writeJSON(w, http.StatusOK, resourceTable(kind, group, version, insts, false, h.now()))
		return
	}

	out := ResourceList{APIVersion: group + "/" + version, Kind: kind + "List"}
	for _, inst := range insts {
		out.Items = append(out.Items, instanceToResource(kind, group, version, inst))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createCluster(w http.ResponseWriter, r *http.Request) {
	group, version, plural := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural")

	if group == CRDGroup && plural == crdPlural {
		h.createCRD(w, r)
		return
	}
	h.createInstance(w, r, group, version, plural, "")
}

func (h *Handler) getCluster(w http.ResponseWriter, r *http.Request) {
	group, version, plural, name := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural"), chiParam(r, "name")

	if group == CRDGroup && plural == crdPlural {
		h.getCRD(w, r)
		return
	}
	h.getInstance(w, r, group, version, plural, "", name)
}

func (h *Handler) patchCluster(w http.ResponseWriter, r *http.Request) {
	group, version, plural, name := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural"), chiParam(r, "name")
	h.patchInstance(w, r, group, version, plural, "", name)
}

func (h *Handler) deleteCluster(w http.ResponseWriter, r *http.Request) {
	group, plural, name := chiParam(r, "group"), chiParam(r, "plural"), chiParam(r, "name")

	if group == CRDGroup && plural == crdPlural {
		h.deleteCRD(w, r)
		return
	}
	version := chiParam(r, "version")
	h.deleteInstance(w, r, group, version, plural, "", name)
}

// -- namespaced resources --

func (h *Handler) listNamespaced(w http.ResponseWriter, r *http.Request) {
	group, version, plural, ns := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural"), chiParam(r, "namespace")

	insts, err := h.store.ListResources(r.Context(), group, "", plural, ns)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	kind := h.kindFor(r, group, version, plural)
	if wantsTable(r) {
		writeJSON(w, http.StatusOK, resourceTable(kind, group, version, insts, true, h.now()))
		return
	}

	out := ResourceList{APIVersion: group + "/" + version, Kind: kind + "List"}
	for _, inst := range insts {
		out.Items = append(out.Items, instanceToResource(kind, group, version, inst))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createNamespaced(w http.ResponseWriter, r *http.Request) {
	group, version, plural, ns := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural"), chiParam(r, "namespace")
	h.createInstance(w, r, group, version, plural, ns)
}

func (h *Handler) getNamespaced(w http.ResponseWriter, r *http.Request) {
	group, version, plural, ns, name := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural"), chiParam(r, "namespace"), chiParam(r, "name")
	h.getInstance(w, r, group, version, plural, ns, name)
}

func (h *Handler) patchNamespaced(w http.ResponseWriter, r *http.Request) {
	group, version, plural, ns, name := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural"), chiParam(r, "namespace"), chiParam(r, "name")
	h.patchInstance(w, r, group, version, plural, ns, name)
}

func (h *Handler) deleteNamespaced(w http.ResponseWriter, r *http.Request) {
	group, version, plural, ns, name := chiParam(r, "group"), chiParam(r, "version"), chiParam(r, "plural"), chiParam(r, "namespace"), chiParam(r, "name")
	h.deleteInstance(w, r, group, version, plural, ns, name)
}

// -- shared instance handlers --

func (h *Handler) createInstance(w http.ResponseWriter, r *http.Request, group, version, plural, namespace string) {
	var body Resource
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot decode request body: "+err.Error())
		return
	}

	inst, err := h.store.PutResource(r.Context(), group, version, plural, namespace, body.Metadata.Name, body.Spec)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	kind := h.kindFor(r, group, version, plural)
	h.queue.Send(queue.Message{
		Action: queue.ActionCreate, Group: group, Version: version, Kind: kind, Plural: plural,
		Namespace: inst.Namespace, Name: inst.Name, Spec: inst.Spec,
	})

	writeJSON(w, http.StatusCreated, instanceToResource(kind, group, version, inst))
}

func (h *Handler) getInstance(w http.ResponseWriter, r *http.Request, group, version, plural, namespace, name string) {
	inst, err := h.store.GetResource(r.Context(), group, version, plural, namespace, name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	kind := h.kindFor(r, group, version, plural)
	writeJSON(w, http.StatusOK, instanceToResource(kind, group, version, inst))
}

func (h *Handler) patchInstance(w http.ResponseWriter, r *http.Request, group, version, plural, namespace, name string) {
	var body Resource
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot decode request body: "+err.Error())
		return
	}

	inst, err := h.store.PatchResourceSpec(r.Context(), group, version, plural, namespace, name, body.Spec)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	// Patch emits nothing to the queue: status writes by the reconciler
	// are in-band, not driven by a reconcile message here.
	kind := h.kindFor(r, group, version, plural)
	writeJSON(w, http.StatusOK, instanceToResource(kind, group, version, inst))
}

func (h *Handler) deleteInstance(w http.ResponseWriter, r *http.Request, group, version, plural, namespace, name string) {
	inst, err := h.store.DeleteResource(r.Context(), group, version, plural, namespace, name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	kind := h.kindFor(r, group, version, plural)
	h.queue.Send(queue.Message{
		Action: queue.ActionDelete, Group: group, Version: version, Kind: kind, Plural: plural,
		Namespace: inst.Namespace, Name: inst.Name, Spec: inst.Spec, Status: inst.Status,
	})

	writeJSON(w, http.StatusOK, instanceToResource(kind, group, version, inst))
}

// kindFor resolves a (group, version, plural) to its CRD's Kind, falling
// back to plural itself if the CRD can't be found (e.g. a request racing a
// concurrent CRD deletion) so responses still have something to show.
func (h *Handler) kindFor(r *http.Request, group, version, plural string) string {
	crd, err := h.store.GetCRD(r.Context(), group, version, plural)
	if err != nil {
		return plural
	}
	return crd.Kind
}

// -- CRD management (special-cased within the cluster-scoped handlers) --

func (h *Handler) listCRDs(w http.ResponseWriter, r *http.Request) {
	crds, err := h.store.ListCRDs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if wantsTable(r) {
		writeJSON(w, http.StatusOK, crdTable(crds, h.now()))
		return
	}
	out := CRDList{APIVersion: crdGroupVersion, Kind: crdKind + "List"}
	for _, c := range crds {
		out.Items = append(out.Items, crdToResource(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createCRD(w http.ResponseWriter, r *http.Request) {
	var body CRDResource
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cannot decode request body: "+err.Error())
		return
	}

	crd := store.CRD{
		Group: body.Spec.Group, Version: body.Spec.Version, Kind: body.Spec.Kind, Plural: body.Spec.Plural,
		ShortNames: body.Spec.ShortNames, Schema: body.Spec.Schema, Scope: store.Scope(body.Spec.Scope),
	}
	created, err := h.store.PutCRD(r.Context(), crd)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, crdToResource(created))
}

func (h *Handler) getCRD(w http.ResponseWriter, r *http.Request) {
	// The CRD-management route addresses CRDs by the name in the URL
	// (their primary key, "{plural}.{group}"), not by (group,version,plural)
	// - a CRD's own route always uses CRDGroup/v1, so {name} here is the
	// CRD's Name(), and we resolve its real (group,version,plural) from the
	// stored CRD list.
	name := chiParam(r, "name")
	crd, err := h.findCRDByName(r, name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, crdToResource(crd))
}

func (h *Handler) deleteCRD(w http.ResponseWriter, r *http.Request) {
	name := chiParam(r, "name")
	if err := h.store.DeleteCRD(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ErrorBody{Message: "deleted"})
}

func (h *Handler) findCRDByName(r *http.Request, name string) (store.CRD, error) {
	crds, err := h.store.ListCRDs(r.Context())
	if err != nil {
		return store.CRD{}, err
	}
	for _, c := range crds {
		if c.Name() == name {
			return c, nil
		}
	}
	return store.CRD{}, xerrors.New(xerrors.KindNotFound, "CRD "+name+" not found")
}

// -- response helpers --

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Message: message})
}

// writeStoreError maps a Resource Store error to an HTTP status: NotFound
// and UnknownKind both surface as 404 to the client, AlreadyExists as
// 409, InvalidArgument as 400, everything else as 500.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case xerrors.Is(err, xerrors.KindNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case xerrors.Is(err, xerrors.KindUnknownKind):
		writeError(w, http.StatusNotFound, err.Error())
	case xerrors.Is(err, xerrors.KindAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case xerrors.Is(err, xerrors.KindInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, errors.Cause(err).Error())
	}
}
