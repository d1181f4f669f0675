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
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/semaphore"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/event"

	"github.com/crossplane/mini-controlplane/internal/driver"
	"github.com/crossplane/mini-controlplane/internal/naming"
	"github.com/crossplane/mini-controlplane/internal/queue"
	"github.com/crossplane/mini-controlplane/internal/store"
	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

const (
	reasonDriftOrphan event.Reason = "DeleteOrphan"
	reasonDriftCreate event.Reason = "DriftCreate"
	reasonDriftBind   event.Reason = "ReconcileBindings"
	reasonHealth      event.Reason = "HealthCheck"
)

// RunDrift starts the periodic drift reconciliation loop, firing one tick
// every interval until ctx is cancelled. Each tick runs one scan per
// registered kind; a kind whose previous scan is still running is skipped
// for this tick rather than queued, via a per-kind non-blocking mutex
// (contention skips this tick).
func (r *Reconciler) RunDrift(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for k, reg := range r.kinds {
				r.driftTick(ctx, k, reg)
			}
		}
	}
}

// driftSem returns the per-kind semaphore guarding concurrent drift scans,
// creating it on first use.
func (r *Reconciler) driftSem(k kindKey) *semaphore.Weighted {
	r.driftMu.Lock()
	defer r.driftMu.Unlock()

	if r.driftSems == nil {
		r.driftSems = map[kindKey]*semaphore.Weighted{}
	}
	sem, ok := r.driftSems[k]
	if !ok {
		sem = semaphore.NewWeighted(1)
		r.driftSems[k] = sem
	}
	return sem
}

func (r *Reconciler) driftTick(ctx context.Context, k kindKey, reg registration) {
	sem := r.driftSem(k)
	if !sem.TryAcquire(1) {
		r.log.Debug("drift scan already in flight, skipping tick", "group", k.Group, "kind", k.Kind)
		return
	}
	defer sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.DriftScanKind(ctx, reg); err != nil {
		r.log.Info("drift scan failed", "group", k.Group, "kind", k.Kind, "error", err)
	}
}

// DriftScanKind runs one full drift reconciliation pass for a single
// registered kind: pending sweep, orphan deletion, missing creation,
// binding drift, and health probe, in that order.
func (r *Reconciler) DriftScanKind(ctx context.Context, reg registration) error {
	if err := r.driftPendingSweep(ctx, reg); err != nil {
		return errors.Wrap(err, "pending sweep")
	}

	external, err := reg.Driver.List(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot list external objects")
	}
	local, err := r.store.ListResources(ctx, reg.Group, "", reg.Plural, "")
	if err != nil {
		return errors.Wrap(err, "cannot list local instances")
	}

	externalByName := make(map[string]driver.ListedObject, len(external))
	for _, obj := range external {
		externalByName[obj.Name] = obj
	}
	localByName := make(map[string]store.Instance, len(local))
	for _, inst := range local {
		localByName[naming.ExternalName(r.instanceName, inst.Group, inst.Plural, inst.Namespace, inst.Name)] = inst
	}

	if err := r.driftOrphans(ctx, reg, external, localByName); err != nil {
		return errors.Wrap(err, "orphan deletion")
	}
	if err := r.driftMissing(ctx, reg, local, externalByName); err != nil {
		return errors.Wrap(err, "missing creation")
	}
	if bd, ok := reg.Driver.(driver.BindingDriver); ok {
		if err := r.driftBindings(ctx, reg, bd, local); err != nil {
			return errors.Wrap(err, "binding drift")
		}
	}
	if hd, ok := reg.Driver.(driver.HealthDriver); ok {
		if err := r.driftHealth(ctx, reg, hd, local); err != nil {
			return errors.Wrap(err, "health probe")
		}
	}
	return nil
}

// driftPendingSweep re-runs the dependency gate over every Pending
// instance of this kind, enqueuing a create for those that have newly
// become ready.
func (r *Reconciler) driftPendingSweep(ctx context.Context, reg registration) error {
	pending, err := r.store.QueryPending(ctx, reg.Group, reg.Kind)
	if err != nil {
		return err
	}

	for _, inst := range pending {
		unresolved, err := r.gate(ctx, inst.Group, inst.Spec)
		if err != nil {
			r.log.Info("cannot re-evaluate pending instance during drift", "name", inst.Name, "error", err)
			continue
		}
		if len(unresolved) == 0 {
			r.queue.Send(queue.Message{
				Action: queue.ActionCreate, Group: inst.Group, Version: inst.Version,
				Kind: reg.Kind, Plural: inst.Plural, Namespace: inst.Namespace, Name: inst.Name, Spec: inst.Spec,
			})
		}
	}
	return nil
}

// driftOrphans deletes provider objects whose name matches the naming
// pattern but whose key is absent from the local set. Objects that don't
// match the pattern are never touched - that's the whole point of
// naming.Matches.
func (r *Reconciler) driftOrphans(ctx context.Context, reg registration, external []driver.ListedObject, localByName map[string]store.Instance) error {
	for _, obj := range external {
		if !naming.Matches(obj.Name, r.instanceName, reg.Plural) {
			continue
		}
		if _, ok := localByName[obj.Name]; ok {
			continue
		}
		if err := reg.Driver.Delete(ctx, obj.ID); err != nil {
			r.log.Info("cannot delete orphaned object", "name", obj.Name, "id", obj.ID, "error", err)
			continue
		}
		r.record.Event(r.kindSubject(reg), event.Normal(reasonDriftOrphan, "deleted orphaned object "+obj.Name))
	}
	return nil
}

// driftMissing sends local instances absent from the provider set through
// the create path (including the dependency gate); they land with a
// reconciledAt timestamp on success.
func (r *Reconciler) driftMissing(ctx context.Context, reg registration, local []store.Instance, externalByName map[string]driver.ListedObject) error {
	for _, inst := range local {
		ext := naming.ExternalName(r.instanceName, inst.Group, inst.Plural, inst.Namespace, inst.Name)
		if _, ok := externalByName[ext]; ok {
			continue
		}

		msg := queue.Message{
			Group: inst.Group, Version: inst.Version, Kind: reg.Kind, Plural: inst.Plural,
			Namespace: inst.Namespace, Name: inst.Name, Spec: inst.Spec,
		}

		unresolved, err := r.gate(ctx, inst.Group, inst.Spec)
		if err != nil {
			r.log.Info("cannot evaluate dependency gate during drift", "name", inst.Name, "error", err)
			continue
		}
		if len(unresolved) > 0 {
			if err := r.stayPending(ctx, reg, msg, unresolved, r.log); err != nil {
				r.log.Info("cannot write pending status during drift", "name", inst.Name, "error", err)
			}
			continue
		}

		res, err := reg.Driver.Create(ctx, inst.Spec, ext)
		if err != nil && !driver.IsAlreadyExists(err) {
			if err := r.failCreate(ctx, reg, msg, err, r.log); err != nil {
				r.log.Info("cannot write failed status during drift", "name", inst.Name, "error", err)
			}
			continue
		}
		if err != nil {
			res, err = adopt(ctx, reg.Driver, ext)
			if err != nil {
				if err := r.failCreate(ctx, reg, msg, err, r.log); err != nil {
					r.log.Info("cannot write failed status during drift", "name", inst.Name, "error", err)
				}
				continue
			}
		}

		now := r.now()
		view := statusFromCreate(res)
		view.ReconciledAt = &now
		if err := r.writeStatus(ctx, reg, inst.Namespace, inst.Name, view); err != nil {
			r.log.Info("cannot write status during drift", "name", inst.Name, "error", err)
			continue
		}
		r.record.Event(r.subject(reg, msg), event.Normal(reasonDriftCreate, "drift-created "+ext))
	}
	return nil
}

// driftBindings reconciles bindings for kinds that carry bindings to
// other resources: compute the expected binding list from
// spec.bindings[] by resolving each referent through the store, fetch the
// live list from the provider, and re-upload only on a set-inequality
// under (name, type, id).
func (r *Reconciler) driftBindings(ctx context.Context, reg registration, bd driver.BindingDriver, local []store.Instance) error {
	for _, inst := range local {
		view, err := store.DecodeStatus(inst.Status)
		if err != nil {
			continue // undecodable status: skip, don't fail the tick.
		}
		id := stringExtra(view.Extra, "externalId")
		if id == "" {
			continue
		}

		refs, err := store.ExtractBindings(inst.Spec)
		if err != nil {
			r.log.Info("cannot parse spec.bindings during drift", "name", inst.Name, "error", err)
			continue
		}

		expected := make([]driver.Binding, 0, len(refs))
		for _, b := range refs {
			group := b.Group
			if group == "" {
				group = inst.Group
			}
			target, err := r.resolveBindingTarget(ctx, group, b.Kind, b.RefName)
			if err != nil {
				r.log.Info("cannot resolve binding referent during drift", "name", inst.Name, "referent", b.RefName, "error", err)
				continue
			}
			expected = append(expected, driver.Binding{Name: b.Name, Type: b.Type, ID: target})
		}

		live, err := bd.GetBindings(ctx, id)
		if err != nil {
			r.log.Info("cannot fetch live bindings during drift", "name", inst.Name, "error", err)
			continue
		}

		if bindingSetsEqual(expected, live) {
			continue
		}
		if err := bd.PutBindings(ctx, id, expected); err != nil {
			sideEffect := xerrors.Wrap(err, xerrors.KindChildSideEffect, "cannot reupload bindings")
			view.State = store.StatePartiallyReady
			view.Error = sideEffect.Error()
			if werr := r.writeStatus(ctx, reg, inst.Namespace, inst.Name, view); werr != nil {
				r.log.Info("cannot write partially-ready status during drift", "name", inst.Name, "error", werr)
			}
			r.record.Event(r.kindSubject(reg), event.Warning(reasonDriftBind, sideEffect))
			continue
		}
		r.record.Event(r.kindSubject(reg), event.Normal(reasonDriftBind, "corrected bindings for "+inst.Name))
	}
	return nil
}

// resolveBindingTarget looks up the provider id bound to (group, kind,
// name) via its stored status.externalId.
func (r *Reconciler) resolveBindingTarget(ctx context.Context, group, kind, name string) (string, error) {
	insts, err := r.store.ListResources(ctx, group, kind, "", "")
	if err != nil {
		return "", err
	}
	for _, inst := range insts {
		if inst.Namespace != "" || inst.Name != name {
			continue
		}
		view, err := store.DecodeStatus(inst.Status)
		if err != nil {
			return "", nil
		}
		return stringExtra(view.Extra, "externalId"), nil
	}
	return "", errors.Errorf("binding referent %s/%s not found", kind, name)
}

// bindingSetsEqual compares two binding lists under (name, type, id)
// set-equality, order-independent: both are sorted into a canonical order
// first so cmp.Equal sees ordering as immaterial.
func bindingSetsEqual(a, b []driver.Binding) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]driver.Binding{}, a...), append([]driver.Binding{}, b...)
	less := func(s []driver.Binding) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].Name != s[j].Name {
				return s[i].Name < s[j].Name
			}
			if s[i].Type != s[j].Type {
				return s[i].Type < s[j].Type
			}
			return s[i].ID < s[j].ID
		}
	}
	sort.Slice(sa, less(sa))
	sort.Slice(sb, less(sb))
	return cmp.Equal(sa, sb)
}

// driftHealth GETs the resource's custom hostname, transitioning
// Ready<->Failed on the outcome and recording
// lastHealthCheck/healthCheckStatus/healthCheckError.
func (r *Reconciler) driftHealth(ctx context.Context, reg registration, hd driver.HealthDriver, local []store.Instance) error {
	for _, inst := range local {
		view, err := store.DecodeStatus(inst.Status)
		if err != nil {
			continue
		}
		if view.State != store.StateReady && view.State != store.StateFailed {
			continue // only probe instances that have actually been provisioned.
		}

		endpoint := stringExtra(view.Extra, "endpoint")
		if endpoint == "" {
			endpoint = naming.WorkerHostname(r.instanceName, inst.Name, r.domain)
		}

		now := r.now()
		view.LastHealthCheck = &now
		if err := hd.Health(ctx, endpoint); err != nil {
			view.State = store.StateFailed
			view.HealthCheckStatus = "unhealthy"
			view.HealthCheckError = truncateError(err.Error())
			r.record.Event(r.subject(reg, toMessage(reg, inst)), event.Warning(reasonHealth, err))
		} else {
			view.State = store.StateReady
			view.HealthCheckStatus = "healthy"
			view.HealthCheckError = ""
		}

		if err := r.writeStatus(ctx, reg, inst.Namespace, inst.Name, view); err != nil {
			r.log.Info("cannot write health status during drift", "name", inst.Name, "error", err)
		}
	}
	return nil
}

// kindSubject builds a kind-level stand-in subject for drift events that
// aren't about one specific instance (e.g. orphan deletion names an
// external object the store has no local record of).
func (r *Reconciler) kindSubject(reg registration) runtime.Object {
	return r.subject(reg, queue.Message{})
}

func toMessage(reg registration, inst store.Instance) queue.Message {
	return queue.Message{
		Group: inst.Group, Version: inst.Version, Kind: reg.Kind, Plural: inst.Plural,
		Namespace: inst.Namespace, Name: inst.Name, Spec: inst.Spec, Status: inst.Status,
	}
}
