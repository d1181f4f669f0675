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
	"strings"

	"dario.cat/mergo"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// ReleaseMetadata is what ReleaseDeploy's source-of-truth lookup returns:
// metadata fetched from an external source-of-truth.
type ReleaseMetadata struct {
	Name    string
	Version string
}

// SourceOfTruth resolves release metadata for a ReleaseDeploy spec.
type SourceOfTruth func(ctx context.Context, spec json.RawMessage) (ReleaseMetadata, error)

// ReleaseDeploy is a composite orchestrator: it fans a single create out
// across three derived drivers in a fixed order: Releases (A, the owning
// instance), then Versions (B, an immutable child of A), then Deploys (C,
// a deployment child of both A and B).
type ReleaseDeploy struct {
	SourceOfTruth SourceOfTruth
	Releases      Driver
	Versions      Driver
	Deploys       Driver
}

// NewReleaseDeploy returns a ReleaseDeploy driver wired to the given
// source-of-truth and three child drivers.
func NewReleaseDeploy(sot SourceOfTruth, releases, versions, deploys Driver) *ReleaseDeploy {
	return &ReleaseDeploy{SourceOfTruth: sot, Releases: releases, Versions: versions, Deploys: deploys}
}

// CreateComposite implements the fixed-order provisioning chain. A failure
// resolving metadata or creating the owning instance A fails the whole
// operation (there is nothing else to build without the release). A
// failure creating B or C is logged by the caller via ChildErrors but does
// not fail the call - the primary resource still reaches PartiallyReady;
// failures in the derived chain are logged but must not fail the primary
// resource.
func (r *ReleaseDeploy) CreateComposite(ctx context.Context, spec json.RawMessage, name string) (CompositeResult, error) {
	md, err := r.SourceOfTruth(ctx, spec)
	if err != nil {
		return CompositeResult{}, xerrors.Wrap(err, xerrors.KindProviderTransient, "cannot resolve release metadata")
	}

	aSpec, err := json.Marshal(md)
	if err != nil {
		return CompositeResult{}, errors.Wrap(err, "cannot encode release metadata")
	}

	a, err := r.Releases.Create(ctx, aSpec, name+"-release")
	if err != nil && !IsAlreadyExists(err) {
		return CompositeResult{}, xerrors.Wrap(err, xerrors.KindProviderPermanent, "cannot create owning release")
	}
	if err != nil {
		a, err = adopt(ctx, r.Releases, name+"-release")
		if err != nil {
			return CompositeResult{}, err
		}
	}

	out := CompositeResult{
		CreateResult: a,
		ChildIDs:     map[string]string{},
		ChildErrors:  map[string]string{},
	}

	childSpec, err := composeChildSpec(spec, md)
	if err != nil {
		return CompositeResult{}, errors.Wrap(err, "cannot compose derived child spec")
	}

	if b, err := r.Versions.Create(ctx, childSpec, name+"-version"); err != nil && !IsAlreadyExists(err) {
		out.ChildErrors["version"] = err.Error()
	} else if err != nil {
		if adopted, aerr := adopt(ctx, r.Versions, name+"-version"); aerr == nil {
			out.ChildIDs["version"] = adopted.ExternalID
		} else {
			out.ChildErrors["version"] = aerr.Error()
		}
	} else {
		out.ChildIDs["version"] = b.ExternalID
	}

	if c, err := r.Deploys.Create(ctx, childSpec, name+"-deploy"); err != nil && !IsAlreadyExists(err) {
		out.ChildErrors["deploy"] = err.Error()
	} else if err != nil {
		if adopted, aerr := adopt(ctx, r.Deploys, name+"-deploy"); aerr == nil {
			out.ChildIDs["deploy"] = adopted.ExternalID
		} else {
			out.ChildErrors["deploy"] = aerr.Error()
		}
	} else {
		out.ChildIDs["deploy"] = c.ExternalID
	}

	return out, nil
}

// DeleteComposite deletes C, then B, then A, in that order. Missing ids
// (empty string, meaning that child was never provisioned) are skipped
// silently.
func (r *ReleaseDeploy) DeleteComposite(ctx context.Context, releaseID, versionID, deployID string) error {
	if deployID != "" {
		if err := r.Deploys.Delete(ctx, deployID); err != nil {
			return errors.Wrap(err, "cannot delete deployment child")
		}
	}
	if versionID != "" {
		if err := r.Versions.Delete(ctx, versionID); err != nil {
			return errors.Wrap(err, "cannot delete version child")
		}
	}
	if releaseID != "" {
		if err := r.Releases.Delete(ctx, releaseID); err != nil {
			return errors.Wrap(err, "cannot delete owning release")
		}
	}
	return nil
}

// Create implements Driver, so ReleaseDeploy sits in the same
// map[(group,kind)]Driver dispatch table as D1, QueueKind and Worker. It
// wraps CreateComposite, folding the derived children's ids and errors into
// Extra so the reconciler can fold them into status without a separate code
// path for this one kind.
func (r *ReleaseDeploy) Create(ctx context.Context, spec json.RawMessage, name string) (CreateResult, error) {
	out, err := r.CreateComposite(ctx, spec, name)
	if err != nil {
		return CreateResult{}, err
	}
	res := out.CreateResult
	res.Extra = map[string]string{}
	for role, id := range out.ChildIDs {
		res.Extra[role+"Id"] = id
	}
	for role, msg := range out.ChildErrors {
		res.Extra[role+"Error"] = msg
	}
	return res, nil
}

// List implements Driver by listing the owning Releases driver: adoption
// and orphan detection for a ReleaseDeploy instance are keyed on the
// owning object's deterministic name, same as any other kind.
func (r *ReleaseDeploy) List(ctx context.Context) ([]ListedObject, error) {
	objs, err := r.Releases.List(ctx)
	if err != nil {
		return nil, err
	}
	// The owning release is created as name+"-release"; report it under
	// name itself so the drift scan's external-name keys line up.
	out := make([]ListedObject, 0, len(objs))
	for _, o := range objs {
		out = append(out, ListedObject{Name: strings.TrimSuffix(o.Name, "-release"), ID: o.ID})
	}
	return out, nil
}

// Delete implements Driver for the common case of an id with no surviving
// children to worry about. The reconciler prefers DeleteComposite directly
// when it has the full release/version/deploy id triple from status, since
// that additionally tears down B and C.
func (r *ReleaseDeploy) Delete(ctx context.Context, id string) error {
	return r.DeleteComposite(ctx, id, "", "")
}

// composeChildSpec derives the spec Versions and Deploys are created with:
// the original spec overlaid with the resolved release metadata, so a
// child always carries the name/version the source of truth resolved
// rather than whatever the caller originally wrote (which may have been
// empty or a floating "latest"). The original spec wins on every other
// field.
func composeChildSpec(original json.RawMessage, md ReleaseMetadata) (json.RawMessage, error) {
	base := map[string]any{}
	if len(original) > 0 {
		if err := json.Unmarshal(original, &base); err != nil {
			return nil, errors.Wrap(err, "cannot parse original spec")
		}
	}

	overlay := map[string]any{
		"name":    md.Name,
		"version": md.Version,
	}
	if err := mergo.Merge(&overlay, base); err != nil {
		return nil, errors.Wrap(err, "cannot merge release metadata into child spec")
	}

	out, err := json.Marshal(overlay)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode derived child spec")
	}
	return out, nil
}

// adopt matches a deterministic name against a driver's List to recover
// a pre-existing provider id.
func adopt(ctx context.Context, d Driver, name string) (CreateResult, error) {
	objs, err := d.List(ctx)
	if err != nil {
		return CreateResult{}, xerrors.Wrap(err, xerrors.KindProviderPermanent, "cannot list existing objects for adoption")
	}
	for _, o := range objs {
		if o.Name == name {
			return CreateResult{ExternalID: o.ID}, nil
		}
	}
	return CreateResult{}, xerrors.New(xerrors.KindProviderPermanent, "object "+name+" reported AlreadyExists but no match found on list")
}
