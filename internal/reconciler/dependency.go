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

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/event"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/crossplane/mini-controlplane/internal/driver"
	"github.com/crossplane/mini-controlplane/internal/queue"
	"github.com/crossplane/mini-controlplane/internal/store"
	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// gate is the dependency gate: it returns the edges of spec.dependencies[]
// whose target is missing, statusless, or not Ready. An empty result means
// every edge is satisfied.
func (r *Reconciler) gate(ctx context.Context, group string, spec json.RawMessage) ([]store.DependencyRef, error) {
	deps, err := store.ExtractDependencies(spec)
	if err != nil {
		return nil, err
	}

	var unresolved []store.DependencyRef
	for _, d := range deps {
		g := d.Group
		if g == "" {
			g = group
		}
		ready, err := r.dependencyReady(ctx, g, d.Kind, d.Name)
		if err != nil {
			return nil, err
		}
		if !ready {
			unresolved = append(unresolved, store.DependencyRef{Group: g, Kind: d.Kind, Name: d.Name})
		}
	}
	return unresolved, nil
}

// dependencyReady looks up a dependency edge's target by (group, kind,
// name, namespace=NULL) - dependency targets are always cluster-scoped
// lookups regardless of the referencing instance's own namespace.
func (r *Reconciler) dependencyReady(ctx context.Context, group, kind, name string) (bool, error) {
	crds, err := r.store.ListCRDs(ctx)
	if err != nil {
		return false, errors.Wrap(err, "cannot list CRDs for dependency resolution")
	}
	hasCRD := false
	for _, c := range crds {
		if c.Group == group && c.Kind == kind {
			hasCRD = true
			break
		}
	}
	if !hasCRD {
		// kind resolves to no CRD, so ListResources' own plural filter
		// would be empty and match every instance in the group - treat
		// this as no candidates rather than let that fall through.
		return false, nil
	}

	insts, err := r.store.ListResources(ctx, group, kind, "", "")
	if err != nil {
		return false, errors.Wrap(err, "cannot list dependency candidates")
	}
	for _, inst := range insts {
		if inst.Namespace != "" || inst.Name != name {
			continue
		}
		view, err := store.DecodeStatus(inst.Status)
		if err != nil {
			// An undecodable status is treated as not ready rather than
			// failing the gate outright.
			return false, nil
		}
		return view.State == store.StateReady, nil
	}
	return false, nil
}

// adopt matches a deterministic name against a driver's List to recover a
// pre-existing provider id when Create reports AlreadyExists: list existing
// objects, match by deterministic name, and adopt the existing object's id
// into status.
func adopt(ctx context.Context, d driver.Driver, name string) (driver.CreateResult, error) {
	objs, err := d.List(ctx)
	if err != nil {
		return driver.CreateResult{}, xerrors.Wrap(err, xerrors.KindProviderPermanent, "cannot list existing objects for adoption")
	}
	for _, o := range objs {
		if o.Name == name {
			return driver.CreateResult{ExternalID: o.ID}, nil
		}
	}
	return driver.CreateResult{}, xerrors.New(xerrors.KindProviderPermanent, "object "+name+" reported AlreadyExists but no match found on list")
}

// fanOut runs after reg/msg's instance is provisioned (Ready or
// PartiallyReady): it finds every other
// instance whose spec.dependencies[] references it and either enqueues its
// create (all edges now satisfied) or refreshes its pendingDependencies.
func (r *Reconciler) fanOut(ctx context.Context, reg registration, msg queue.Message, log logging.Logger) error {
	dependents, err := r.store.FindDependents(ctx, reg.Group, reg.Kind, msg.Name)
	if err != nil {
		return errors.Wrap(err, "cannot find dependents for fan-out")
	}

	for _, dep := range dependents {
		depReg, ok := r.byPlural[pluralKey{Group: dep.Group, Plural: dep.Plural}]
		if !ok {
			continue
		}

		unresolved, err := r.gate(ctx, dep.Group, dep.Spec)
		if err != nil {
			log.Info("cannot re-evaluate dependent during fan-out", "dependent", dep.Name, "error", err)
			continue
		}

		depMsg := queue.Message{
			Group: dep.Group, Version: dep.Version, Kind: depReg.Kind, Plural: dep.Plural,
			Namespace: dep.Namespace, Name: dep.Name, Spec: dep.Spec, Status: dep.Status,
		}

		if len(unresolved) == 0 {
			r.queue.Send(queue.Message{Action: queue.ActionCreate, Group: depMsg.Group, Version: depMsg.Version,
				Kind: depMsg.Kind, Plural: depMsg.Plural, Namespace: depMsg.Namespace, Name: depMsg.Name, Spec: depMsg.Spec})
			r.record.Event(r.subject(depReg, depMsg), event.Normal(reasonFanOut, "dependency resolved, requeuing create"))
			continue
		}

		if err := r.stayPending(ctx, depReg, depMsg, unresolved, log); err != nil {
			log.Info("cannot update dependent's pending status during fan-out", "dependent", dep.Name, "error", err)
		}
	}
	return nil
}
