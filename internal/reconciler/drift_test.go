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

package reconciler

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/crossplane/mini-controlplane/internal/driver"
	"github.com/crossplane/mini-controlplane/internal/driver/fake"
	"github.com/crossplane/mini-controlplane/internal/naming"
	"github.com/crossplane/mini-controlplane/internal/store"
	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

func TestDriftOrphansDeletesUnmatchedExternalObjectOnce(t *testing.T) {
	r, st := newTestReconciler(t)
	mustPutCRD(t, st, "Widget", "widgets")

	ext := naming.ExternalName("cp", testGroup, "widgets", "default", "orphan")
	deleteCalls := 0
	fd := &fake.Driver{
		DeleteFn: func(_ context.Context, id string) error {
			deleteCalls++
			if id != "orphan-id" {
				t.Fatalf("unexpected delete id %q", id)
			}
			return nil
		},
	}
	r.RegisterKind(testGroup, "v1", "widgets", "Widget", fd)
	reg := r.kinds[kindKey{Group: testGroup, Kind: "Widget"}]

	external := []driver.ListedObject{{Name: ext, ID: "orphan-id"}}
	if err := r.driftOrphans(context.Background(), reg, external, map[string]store.Instance{}); err != nil {
		t.Fatalf("driftOrphans: %v", err)
	}
	if deleteCalls != 1 {
		t.Fatalf("deleteCalls = %d, want 1", deleteCalls)
	}

	// A second tick that no longer lists the object makes no further calls.
	if err := r.driftOrphans(context.Background(), reg, nil, map[string]store.Instance{}); err != nil {
		t.Fatalf("second driftOrphans: %v", err)
	}
	if deleteCalls != 1 {
		t.Fatalf("deleteCalls after second tick = %d, want still 1", deleteCalls)
	}
}

func TestDriftOrphansSkipsObjectsNotMatchingNamingPattern(t *testing.T) {
	r, st := newTestReconciler(t)
	mustPutCRD(t, st, "Widget", "widgets")

	deleteCalls := 0
	fd := &fake.Driver{
		DeleteFn: func(context.Context, string) error {
			deleteCalls++
			return nil
		},
	}
	r.RegisterKind(testGroup, "v1", "widgets", "Widget", fd)
	reg := r.kinds[kindKey{Group: testGroup, Kind: "Widget"}]

	external := []driver.ListedObject{{Name: "hand-created-object", ID: "manual-id"}}
	if err := r.driftOrphans(context.Background(), reg, external, map[string]store.Instance{}); err != nil {
		t.Fatalf("driftOrphans: %v", err)
	}
	if deleteCalls != 0 {
		t.Fatalf("expected no deletes for a name that doesn't match the naming pattern, got %d", deleteCalls)
	}
}

func TestDriftMissingCreatesLocalOnlyInstance(t *testing.T) {
	r, st := newTestReconciler(t)
	mustPutCRD(t, st, "Widget", "widgets")
	d := driver.NewD1()
	r.RegisterKind(testGroup, "v1", "widgets", "Widget", d)
	reg := r.kinds[kindKey{Group: testGroup, Kind: "Widget"}]

	inst, err := st.PutResource(context.Background(), testGroup, "v1", "widgets", "default", "a", nil)
	if err != nil {
		t.Fatalf("PutResource: %v", err)
	}

	if err := r.driftMissing(context.Background(), reg, []store.Instance{inst}, map[string]driver.ListedObject{}); err != nil {
		t.Fatalf("driftMissing: %v", err)
	}

	got := mustGet(t, st, "widgets", inst.Name)
	view, err := store.DecodeStatus(got.Status)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if view.State != store.StateReady {
		t.Fatalf("state = %v, want Ready", view.State)
	}
	if view.ReconciledAt == nil {
		t.Fatal("expected reconciledAt to be set by the drift-created path")
	}
}

func TestDriftHealthTransitionsReadyFailedAndBack(t *testing.T) {
	r, st := newTestReconciler(t)
	mustPutCRD(t, st, "Worker", "workers")

	inst, err := st.PutResource(context.Background(), testGroup, "v1", "workers", "default", "w", nil)
	if err != nil {
		t.Fatalf("PutResource: %v", err)
	}
	readyStatus, _ := json.Marshal(store.StatusView{State: store.StateReady, Extra: map[string]any{"externalId": "worker-ext"}})
	if err := st.SetStatus(context.Background(), testGroup, "v1", "workers", "default", inst.Name, readyStatus); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	healthy := false
	fd := &fake.Driver{
		HealthFn: func(context.Context, string) error {
			if healthy {
				return nil
			}
			return errors.New(strings.Repeat("x", healthCheckErrorLimit+100))
		},
	}
	r.RegisterKind(testGroup, "v1", "workers", "Worker", fd)
	reg := r.kinds[kindKey{Group: testGroup, Kind: "Worker"}]

	if err := r.driftHealth(context.Background(), reg, fd, []store.Instance{mustGet(t, st, "workers", inst.Name)}); err != nil {
		t.Fatalf("driftHealth: %v", err)
	}
	got := mustGet(t, st, "workers", inst.Name)
	view, err := store.DecodeStatus(got.Status)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if view.State != store.StateFailed {
		t.Fatalf("state = %v, want Failed", view.State)
	}
	if view.HealthCheckStatus != "unhealthy" {
		t.Fatalf("healthCheckStatus = %q, want unhealthy", view.HealthCheckStatus)
	}
	if len(view.HealthCheckError) != healthCheckErrorLimit {
		t.Fatalf("healthCheckError length = %d, want truncated to %d", len(view.HealthCheckError), healthCheckErrorLimit)
	}
	if view.LastHealthCheck == nil {
		t.Fatal("expected lastHealthCheck to be set")
	}

	healthy = true
	if err := r.driftHealth(context.Background(), reg, fd, []store.Instance{mustGet(t, st, "workers", inst.Name)}); err != nil {
		t.Fatalf("second driftHealth: %v", err)
	}
	got = mustGet(t, st, "workers", inst.Name)
	view, err = store.DecodeStatus(got.Status)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if view.State != store.StateReady {
		t.Fatalf("state = %v, want Ready after recovery", view.State)
	}
	if view.HealthCheckStatus != "healthy" {
		t.Fatalf("healthCheckStatus = %q, want healthy", view.HealthCheckStatus)
	}
	if view.HealthCheckError != "" {
		t.Fatalf("expected healthCheckError to clear on recovery, got %q", view.HealthCheckError)
	}
}

func TestDriftBindingsSetsPartiallyReadyOnPutFailure(t *testing.T) {
	r, st := newTestReconciler(t)

	if _, err := st.PutCRD(context.Background(), store.CRD{Group: testGroup, Version: "v1", Kind: "Database", Plural: "databases", Scope: store.ScopeCluster}); err != nil {
		t.Fatalf("PutCRD Database: %v", err)
	}
	dbStatus, _ := json.Marshal(store.StatusView{State: store.StateReady, Extra: map[string]any{"externalId": "db-id"}})
	if _, err := st.PutResource(context.Background(), testGroup, "v1", "databases", "", "db", nil); err != nil {
		t.Fatalf("PutResource Database: %v", err)
	}
	if err := st.SetStatus(context.Background(), testGroup, "v1", "databases", "", "db", dbStatus); err != nil {
		t.Fatalf("SetStatus Database: %v", err)
	}

	mustPutCRD(t, st, "Worker", "workers")
	spec, _ := json.Marshal(map[string]any{
		"bindings": []map[string]string{{"name": "db", "type": "D1", "kind": "Database", "refName": "db"}},
	})
	inst, err := st.PutResource(context.Background(), testGroup, "v1", "workers", "default", "w", spec)
	if err != nil {
		t.Fatalf("PutResource Worker: %v", err)
	}
	workerStatus, _ := json.Marshal(store.StatusView{State: store.StateReady, Extra: map[string]any{"externalId": "worker-ext"}})
	if err := st.SetStatus(context.Background(), testGroup, "v1", "workers", "default", inst.Name, workerStatus); err != nil {
		t.Fatalf("SetStatus Worker: %v", err)
	}

	fd := &fake.Driver{
		GetBindingsFn: func(context.Context, string) ([]driver.Binding, error) { return nil, nil },
		PutBindingsFn: func(context.Context, string, []driver.Binding) error {
			return xerrors.New(xerrors.KindProviderPermanent, "provider rejected binding update")
		},
	}
	r.RegisterKind(testGroup, "v1", "workers", "Worker", fd)
	reg := r.kinds[kindKey{Group: testGroup, Kind: "Worker"}]

	local, err := st.ListResources(context.Background(), testGroup, "", "workers", "")
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}

	if err := r.driftBindings(context.Background(), reg, fd, local); err != nil {
		t.Fatalf("driftBindings: %v", err)
	}

	got := mustGet(t, st, "workers", inst.Name)
	view, err := store.DecodeStatus(got.Status)
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if view.State != store.StatePartiallyReady {
		t.Fatalf("state = %v, want PartiallyReady", view.State)
	}
	if view.Error == "" {
		t.Fatal("expected status.error to carry the binding side-effect failure")
	}
	if view.Extra["externalId"] != "worker-ext" {
		t.Fatalf("expected the existing externalId to survive the status rewrite, got %+v", view.Extra)
	}
}

func TestDriftBindingsSkipsWhenSetsAlreadyEqual(t *testing.T) {
	r, st := newTestReconciler(t)

	if _, err := st.PutCRD(context.Background(), store.CRD{Group: testGroup, Version: "v1", Kind: "Database", Plural: "databases", Scope: store.ScopeCluster}); err != nil {
		t.Fatalf("PutCRD Database: %v", err)
	}
	dbStatus, _ := json.Marshal(store.StatusView{State: store.StateReady, Extra: map[string]any{"externalId": "db-id"}})
	if _, err := st.PutResource(context.Background(), testGroup, "v1", "databases", "", "db", nil); err != nil {
		t.Fatalf("PutResource Database: %v", err)
	}
	if err := st.SetStatus(context.Background(), testGroup, "v1", "databases", "", "db", dbStatus); err != nil {
		t.Fatalf("SetStatus Database: %v", err)
	}

	mustPutCRD(t, st, "Worker", "workers")
	spec, _ := json.Marshal(map[string]any{
		"bindings": []map[string]string{{"name": "db", "type": "D1", "kind": "Database", "refName": "db"}},
	})
	inst, err := st.PutResource(context.Background(), testGroup, "v1", "workers", "default", "w", spec)
	if err != nil {
		t.Fatalf("PutResource Worker: %v", err)
	}
	workerStatus, _ := json.Marshal(store.StatusView{State: store.StateReady, Extra: map[string]any{"externalId": "worker-ext"}})
	if err := st.SetStatus(context.Background(), testGroup, "v1", "workers", "default", inst.Name, workerStatus); err != nil {
		t.Fatalf("SetStatus Worker: %v", err)
	}

	putCalled := false
	fd := &fake.Driver{
		GetBindingsFn: func(context.Context, string) ([]driver.Binding, error) {
			return []driver.Binding{{Name: "db", Type: "D1", ID: "db-id"}}, nil
		},
		PutBindingsFn: func(context.Context, string, []driver.Binding) error {
			putCalled = true
			return nil
		},
	}
	r.RegisterKind(testGroup, "v1", "workers", "Worker", fd)
	reg := r.kinds[kindKey{Group: testGroup, Kind: "Worker"}]

	local, err := st.ListResources(context.Background(), testGroup, "", "workers", "")
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}

	if err := r.driftBindings(context.Background(), reg, fd, local); err != nil {
		t.Fatalf("driftBindings: %v", err)
	}
	if putCalled {
		t.Fatal("expected PutBindings not to be called when the live set already matches expected")
	}
}
