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

// Package reconciler drives external-world state toward each resource
// instance's declared spec via its Provider Driver, with dependency-gated
// creation, post-provision fan-out, and a periodic drift scan.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/event"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"golang.org/x/sync/semaphore"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/crossplane/mini-controlplane/internal/driver"
	"github.com/crossplane/mini-controlplane/internal/naming"
	"github.com/crossplane/mini-controlplane/internal/queue"
	"github.com/crossplane/mini-controlplane/internal/store"
	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

const defaultTimeout = 2 * time.Minute

const (
	reasonCreate event.Reason = "ProvisionResource"
	reasonDelete event.Reason = "DeprovisionResource"
	reasonPend   event.Reason = "AwaitDependencies"
	reasonFanOut event.Reason = "ResolveDependents"
)

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger specifies how the Reconciler should log messages.
func WithLogger(log logging.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.log = log }
}

// WithRecorder specifies how the Reconciler should record reconcile-outcome
// events.
func WithRecorder(rec event.Recorder) ReconcilerOption {
	return func(r *Reconciler) { r.record = rec }
}

// WithTimeout overrides the per-message reconcile deadline; each attempt
// carries a deadline derived from the tick interval.
func WithTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.timeout = d }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// registration is what RegisterKind records for one (group, kind): the
// coordinates needed to address the store plus the driver that provisions
// it.
type registration struct {
	Group, Version, Plural, Kind string
	Driver                       driver.Driver
}

type kindKey struct{ Group, Kind string }

// pluralKey resolves a store.Instance (which carries Plural, not Kind) back
// to its registration, for the fan-out path.
type pluralKey struct{ Group, Plural string }

// Reconciler is the control plane's controller runtime. One Reconciler
// dispatches every registered kind; RegisterKind populates its
// map[(group,kind)]Driver dispatch table.
type Reconciler struct {
	store store.Store
	queue queue.Queue

	instanceName string
	domain       string

	kinds    map[kindKey]registration
	byPlural map[pluralKey]registration

	log     logging.Logger
	record  event.Recorder
	timeout time.Duration
	now     func() time.Time

	driftMu   sync.Mutex
	driftSems map[kindKey]*semaphore.Weighted
}

// NewReconciler returns a Reconciler with no kinds registered yet. Callers
// register one per Provider Driver via RegisterKind before starting Run.
func NewReconciler(st store.Store, q queue.Queue, instanceName, domain string, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:        st,
		queue:        q,
		instanceName: instanceName,
		domain:       domain,
		kinds:        map[kindKey]registration{},
		byPlural:     map[pluralKey]registration{},
		log:          logging.NewNopLogger(),
		record:       event.NewNopRecorder(),
		timeout:      defaultTimeout,
		now:          time.Now,
	}
	for _, f := range opts {
		f(r)
	}
	return r
}

// RegisterKind wires d as the Provider Driver for every instance of
// (group, kind), addressed in the store via (group, version, plural).
func (r *Reconciler) RegisterKind(group, version, plural, kind string, d driver.Driver) {
	reg := registration{Group: group, Version: version, Plural: plural, Kind: kind, Driver: d}
	r.kinds[kindKey{Group: group, Kind: kind}] = reg
	r.byPlural[pluralKey{Group: group, Plural: plural}] = reg
}

// Kinds returns the (group, kind) pairs currently registered, in no
// particular order.
func (r *Reconciler) Kinds() []struct{ Group, Kind string } {
	out := make([]struct{ Group, Kind string }, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, struct{ Group, Kind string }{k.Group, k.Kind})
	}
	return out
}

// Reconcile processes one delivered message: dispatch by (group, kind,
// action) to the registered driver. Exactly one reconcile attempt per
// call; a non-nil return means the caller should retry delivery, nil
// means the message is fully handled (including terminal failures, which
// are recorded in status rather than returned as errors).
func (r *Reconciler) Reconcile(ctx context.Context, msg queue.Message) error {
	log := r.log.WithValues("key", msg.Key(), "action", msg.Action)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reg, ok := r.kinds[kindKey{Group: msg.Group, Kind: msg.Kind}]
	if !ok {
		log.Info("no driver registered for this kind, dropping message")
		return nil
	}

	switch msg.Action {
	case queue.ActionCreate:
		return r.reconcileCreate(ctx, reg, msg, log)
	case queue.ActionDelete:
		return r.reconcileDelete(ctx, reg, msg, log)
	default:
		return errors.Errorf("unknown reconcile action %q", msg.Action)
	}
}

func (r *Reconciler) reconcileCreate(ctx context.Context, reg registration, msg queue.Message, log logging.Logger) error {
	unresolved, err := r.gate(ctx, msg.Group, msg.Spec)
	if err != nil {
		return errors.Wrap(err, "cannot evaluate dependency gate")
	}
	if len(unresolved) > 0 {
		return r.stayPending(ctx, reg, msg, unresolved, log)
	}

	ext := naming.ExternalName(r.instanceName, msg.Group, msg.Plural, msg.Namespace, msg.Name)

	res, err := reg.Driver.Create(ctx, msg.Spec, ext)
	switch {
	case err == nil:
		// fall through to the success path below.
	case driver.IsAlreadyExists(err):
		adopted, aerr := adopt(ctx, reg.Driver, ext)
		if aerr != nil {
			return r.failCreate(ctx, reg, msg, aerr, log)
		}
		res = adopted
	case xerrors.Is(err, xerrors.KindProviderTransient):
		r.record.Event(r.subject(reg, msg), event.Warning(reasonCreate, err))
		return errors.Wrap(err, "provider create failed transiently, will retry")
	default:
		return r.failCreate(ctx, reg, msg, err, log)
	}

	view := statusFromCreate(res)
	if childErrs := childErrorSummary(res.Extra); childErrs != "" {
		view.State = store.StatePartiallyReady
		view.Error = childErrs
	}

	if err := r.writeStatus(ctx, reg, msg.Namespace, msg.Name, view); err != nil {
		return errors.Wrap(err, "cannot write ready status")
	}
	r.record.Event(r.subject(reg, msg), event.Normal(reasonCreate, string(view.State)+": provisioned "+ext))
	log.Debug("provisioned", "state", view.State)

	return r.fanOut(ctx, reg, msg, log)
}

func (r *Reconciler) stayPending(ctx context.Context, reg registration, msg queue.Message, unresolved []store.DependencyRef, log logging.Logger) error {
	now := r.now()
	view := store.StatusView{
		Extra:               map[string]any{},
		State:               store.StatePending,
		Message:             "waiting on dependencies",
		PendingDependencies: unresolved,
		LastDependencyCheck: &now,
	}
	if err := r.writeStatus(ctx, reg, msg.Namespace, msg.Name, view); err != nil {
		return errors.Wrap(err, "cannot write pending status")
	}
	r.record.Event(r.subject(reg, msg), event.Normal(reasonPend, "waiting on dependencies"))
	log.Debug("dependencies not ready", "pendingDependencies", unresolved)
	return nil
}

func (r *Reconciler) failCreate(ctx context.Context, reg registration, msg queue.Message, cause error, log logging.Logger) error {
	view := store.StatusView{Extra: map[string]any{}, State: store.StateFailed, Error: cause.Error()}
	if err := r.writeStatus(ctx, reg, msg.Namespace, msg.Name, view); err != nil {
		return errors.Wrap(err, "cannot write failed status")
	}
	r.record.Event(r.subject(reg, msg), event.Warning(reasonCreate, cause))
	log.Info("provisioning failed permanently", "error", cause)
	return nil
}

func (r *Reconciler) reconcileDelete(ctx context.Context, reg registration, msg queue.Message, log logging.Logger) error {
	view, err := store.DecodeStatus(msg.Status)
	if err != nil {
		// An undecodable carried status is treated as empty and the delete
		// proceeds - there is nothing to look up an id from.
		view = store.StatusView{Extra: map[string]any{}}
	}

	if cd, ok := reg.Driver.(driver.CompositeDriver); ok {
		err = cd.DeleteComposite(ctx, stringExtra(view.Extra, "externalId"), stringExtra(view.Extra, "versionId"), stringExtra(view.Extra, "deployId"))
	} else {
		id := stringExtra(view.Extra, "externalId")
		if id == "" {
			log.Debug("no provider id on carried status, nothing to delete")
			return nil
		}
		err = reg.Driver.Delete(ctx, id)
	}
	if err != nil {
		if xerrors.Is(err, xerrors.KindProviderTransient) {
			return errors.Wrap(err, "provider delete failed transiently, will retry")
		}
		// Deletion is best-effort: a permanent delete error is logged, not
		// retried forever.
		log.Info("delete failed", "error", err)
		r.record.Event(r.subject(reg, msg), event.Warning(reasonDelete, err))
		return nil
	}
	r.record.Event(r.subject(reg, msg), event.Normal(reasonDelete, "deprovisioned"))
	return nil
}

// subject builds a minimal runtime.Object to pass to event.Recorder.Event -
// this repo's resource instances aren't Kubernetes objects, so an
// Unstructured stand-in carries just enough identity (kind, namespace,
// name) for an API-backed recorder to attach the event to the right thing.
func (r *Reconciler) subject(reg registration, msg queue.Message) runtime.Object {
	u := &unstructured.Unstructured{}
	u.SetAPIVersion(reg.Group + "/" + reg.Version)
	u.SetKind(reg.Kind)
	u.SetNamespace(msg.Namespace)
	u.SetName(msg.Name)
	return u
}
