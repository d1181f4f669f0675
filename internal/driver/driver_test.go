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

package driver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/crossplane/mini-controlplane/internal/driver/fake"
)

var errBoom = errors.New("boom")

func TestSimulatedCreateThenList(t *testing.T) {
	d := NewD1()
	res, err := d.Create(context.Background(), nil, "foo-a1b2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.ExternalID == "" {
		t.Fatal("expected a non-empty external id")
	}

	objs, err := d.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 1 || objs[0].Name != "foo-a1b2" || objs[0].ID != res.ExternalID {
		t.Fatalf("unexpected listed objects: %+v", objs)
	}
}

func TestSimulatedCreateDuplicateIsAlreadyExists(t *testing.T) {
	d := NewD1()
	if _, err := d.Create(context.Background(), nil, "foo-a1b2"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := d.Create(context.Background(), nil, "foo-a1b2")
	if !IsAlreadyExists(err) {
		t.Fatalf("expected IsAlreadyExists, got %v", err)
	}
}

func TestSimulatedDeleteMissingIsNoop(t *testing.T) {
	d := NewD1()
	if err := d.Delete(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("Delete of missing id should be a no-op, got %v", err)
	}
}

func TestWorkerBindingsRoundTrip(t *testing.T) {
	w := NewWorker()
	res, err := w.Create(context.Background(), nil, "wk-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := []Binding{{Name: "db", Type: "D1", ID: "d-1"}}
	if err := w.PutBindings(context.Background(), res.ExternalID, want); err != nil {
		t.Fatalf("PutBindings: %v", err)
	}
	got, err := w.GetBindings(context.Background(), res.ExternalID)
	if err != nil {
		t.Fatalf("GetBindings: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("GetBindings = %+v, want %+v", got, want)
	}
}

func TestReleaseDeployCreateCompositeSucceeds(t *testing.T) {
	sot := func(context.Context, json.RawMessage) (ReleaseMetadata, error) {
		return ReleaseMetadata{Name: "app", Version: "1.2.3"}, nil
	}
	rd := NewReleaseDeploy(sot, NewD1(), NewD1(), NewD1())

	out, err := rd.CreateComposite(context.Background(), nil, "app-xyz")
	if err != nil {
		t.Fatalf("CreateComposite: %v", err)
	}
	if out.ExternalID == "" {
		t.Fatal("expected non-empty primary id")
	}
	if len(out.ChildErrors) != 0 {
		t.Fatalf("expected no child errors, got %v", out.ChildErrors)
	}
	if out.ChildIDs["version"] == "" || out.ChildIDs["deploy"] == "" {
		t.Fatalf("expected both derived children provisioned, got %+v", out.ChildIDs)
	}
}

func TestReleaseDeployChildFailureDoesNotFailPrimary(t *testing.T) {
	sot := func(context.Context, json.RawMessage) (ReleaseMetadata, error) {
		return ReleaseMetadata{Name: "app", Version: "1.2.3"}, nil
	}
	versions := &fake.Driver{
		CreateFn: fake.NewCreateFn(CreateResult{}, errBoom),
	}
	rd := NewReleaseDeploy(sot, NewD1(), versions, NewD1())

	out, err := rd.CreateComposite(context.Background(), nil, "app-xyz")
	if err != nil {
		t.Fatalf("CreateComposite should not fail when only a child fails: %v", err)
	}
	if out.ExternalID == "" {
		t.Fatal("expected the primary release to still be created")
	}
	if out.ChildErrors["version"] == "" {
		t.Fatal("expected the version child's failure to be recorded in ChildErrors")
	}
	if out.ChildIDs["deploy"] == "" {
		t.Fatal("expected the deploy child to still provision despite the version failure")
	}
}

func TestReleaseDeployAdoptsExistingChild(t *testing.T) {
	sot := func(context.Context, json.RawMessage) (ReleaseMetadata, error) {
		return ReleaseMetadata{Name: "app", Version: "1.2.3"}, nil
	}
	versions := NewD1()
	versions.Seed("app-xyz-version", "pre-existing-id")
	rd := NewReleaseDeploy(sot, NewD1(), versions, NewD1())

	out, err := rd.CreateComposite(context.Background(), nil, "app-xyz")
	if err != nil {
		t.Fatalf("CreateComposite: %v", err)
	}
	if out.ChildIDs["version"] != "pre-existing-id" {
		t.Fatalf("expected adoption of the pre-existing version, got %+v / %+v", out.ChildIDs, out.ChildErrors)
	}
}

func TestReleaseDeploySourceOfTruthFailureFailsWhole(t *testing.T) {
	sot := func(context.Context, json.RawMessage) (ReleaseMetadata, error) {
		return ReleaseMetadata{}, errBoom
	}
	rd := NewReleaseDeploy(sot, NewD1(), NewD1(), NewD1())

	_, err := rd.CreateComposite(context.Background(), nil, "app-xyz")
	if err == nil {
		t.Fatal("expected an error when source-of-truth lookup fails")
	}
}

func TestReleaseDeployDeleteCompositeSkipsMissingIDs(t *testing.T) {
	rd := NewReleaseDeploy(nil, NewD1(), NewD1(), NewD1())
	if err := rd.DeleteComposite(context.Background(), "", "", ""); err != nil {
		t.Fatalf("DeleteComposite with all-empty ids should be a no-op, got %v", err)
	}
}
