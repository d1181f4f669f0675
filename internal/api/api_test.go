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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crossplane/mini-controlplane/internal/queue"
	"github.com/crossplane/mini-controlplane/internal/store"
)

var ctx = context.Background()

func newTestHandler() (*Handler, *store.Memory, *queue.WorkQueue) {
	st := store.NewMemory()
	q := queue.New()
	return New(st, q), st, q
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateGetDeleteCRD(t *testing.T) {
	h, _, _ := newTestHandler()
	router := h.Router()

	crdBody := `{"apiVersion":"apiextensions.mini-controlplane.io/v1","kind":"CustomResourceDefinition",
		"metadata":{"name":"foos.x.io"},"spec":{"group":"x.io","version":"v1","kind":"Foo","plural":"foos","scope":"Cluster"}}`
	rec := doJSON(t, router, http.MethodPost, "/apis/apiextensions.mini-controlplane.io/v1/customresourcedefinitions", crdBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create CRD: got status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/apis/apiextensions.mini-controlplane.io/v1/customresourcedefinitions/foos.x.io", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get CRD: got status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/apis/apiextensions.mini-controlplane.io/v1/customresourcedefinitions/foos.x.io", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete CRD: got status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/apis/apiextensions.mini-controlplane.io/v1/customresourcedefinitions/foos.x.io", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted CRD: got status %d, want 404", rec.Code)
	}
}

// TestCreateInstanceEmitsCreate checks that creating an instance emits a
// reconcile message to the Work Queue.
func TestCreateInstanceEmitsCreate(t *testing.T) {
	h, st, q := newTestHandler()
	router := h.Router()

	if _, err := st.PutCRD(ctx, store.CRD{Group: "x.io", Version: "v1", Kind: "Foo", Plural: "foos", Scope: store.ScopeCluster}); err != nil {
		t.Fatalf("PutCRD: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/apis/x.io/v1/foos", `{"metadata":{"name":"a"},"spec":{}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create instance: got status %d, body %s", rec.Code, rec.Body.String())
	}

	d, ok := q.Receive()
	if !ok {
		t.Fatal("Receive: got !ok, want a queued create message")
	}
	if d.Message.Action != queue.ActionCreate || d.Message.Name != "a" || d.Message.Kind != "Foo" {
		t.Fatalf("unexpected queued message: %+v", d.Message)
	}
	d.Ack()
}

// TestPatchShallowMerge checks that patching {a:1} over {a:0,b:2} yields
// {a:1,b:2}, and emits nothing to the queue.
func TestPatchShallowMerge(t *testing.T) {
	h, st, q := newTestHandler()
	router := h.Router()

	if _, err := st.PutCRD(ctx, store.CRD{Group: "x.io", Version: "v1", Kind: "Foo", Plural: "foos", Scope: store.ScopeCluster}); err != nil {
		t.Fatalf("PutCRD: %v", err)
	}
	if _, err := st.PutResource(ctx, "x.io", "v1", "foos", "", "a", json.RawMessage(`{"a":0,"b":2}`)); err != nil {
		t.Fatalf("PutResource: %v", err)
	}
	// The PutCRD/PutResource calls above went straight to the store,
	// bypassing the API layer, so nothing was queued before the patch.

	rec := doJSON(t, router, http.MethodPatch, "/apis/x.io/v1/foos/a", `{"spec":{"a":1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: got status %d, body %s", rec.Code, rec.Body.String())
	}

	var got Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(got.Spec) != `{"a":1,"b":2}` {
		t.Fatalf("patched spec: got %s, want {\"a\":1,\"b\":2}", got.Spec)
	}

	q.ShutDown()
	if _, ok := q.Receive(); ok {
		t.Fatal("patch should not have emitted a queue message")
	}
}

// TestDeleteInstanceThenNotFound checks that after delete, GET returns 404.
func TestDeleteInstanceThenNotFound(t *testing.T) {
	h, st, _ := newTestHandler()
	router := h.Router()

	if _, err := st.PutCRD(ctx, store.CRD{Group: "x.io", Version: "v1", Kind: "Foo", Plural: "foos", Scope: store.ScopeCluster}); err != nil {
		t.Fatalf("PutCRD: %v", err)
	}
	if _, err := st.PutResource(ctx, "x.io", "v1", "foos", "", "a", nil); err != nil {
		t.Fatalf("PutResource: %v", err)
	}

	rec := doJSON(t, router, http.MethodDelete, "/apis/x.io/v1/foos/a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/apis/x.io/v1/foos/a", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got status %d, want 404", rec.Code)
	}
}

// TestCreateAgainstUnknownKind checks that creating against an unregistered
// kind surfaces as 404, not a queued message.
func TestCreateAgainstUnknownKind(t *testing.T) {
	h, _, q := newTestHandler()
	router := h.Router()

	rec := doJSON(t, router, http.MethodPost, "/apis/x.io/v1/foos", `{"metadata":{"name":"a"},"spec":{}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("create against missing CRD: got status %d, want 404", rec.Code)
	}

	q.ShutDown()
	if _, ok := q.Receive(); ok {
		t.Fatal("create against missing CRD should not have emitted a queue message")
	}
}

// TestListTableVariant checks the tabular content-type negotiation.
func TestListTableVariant(t *testing.T) {
	h, st, _ := newTestHandler()
	router := h.Router()

	if _, err := st.PutCRD(ctx, store.CRD{Group: "x.io", Version: "v1", Kind: "Foo", Plural: "foos", Scope: store.ScopeCluster}); err != nil {
		t.Fatalf("PutCRD: %v", err)
	}
	if _, err := st.PutResource(ctx, "x.io", "v1", "foos", "", "a", nil); err != nil {
		t.Fatalf("PutResource: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/apis/x.io/v1/foos", nil)
	req.Header.Set("Accept", "application/json;as=Table")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var tbl Table
	if err := json.Unmarshal(rec.Body.Bytes(), &tbl); err != nil {
		t.Fatalf("decode table: %v", err)
	}
	if tbl.Kind != "Table" {
		t.Fatalf("got kind %q, want Table", tbl.Kind)
	}
	if len(tbl.ColumnDefinitions) != 2 {
		t.Fatalf("cluster-scoped table: got %d columns, want 2 (Name, Age)", len(tbl.ColumnDefinitions))
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0].Cells[0] != "a" {
		t.Fatalf("unexpected rows: %+v", tbl.Rows)
	}
}
