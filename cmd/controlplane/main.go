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

// Package main runs the control plane server: the Resource Store, the
// Work Queue, the Reconciler (event-driven plus periodic drift scan) and
// the REST API Surface, wired together behind one process.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/crossplane/mini-controlplane/internal/api"
	"github.com/crossplane/mini-controlplane/internal/driver"
	"github.com/crossplane/mini-controlplane/internal/queue"
	"github.com/crossplane/mini-controlplane/internal/reconciler"
	"github.com/crossplane/mini-controlplane/internal/store"
	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// builtinGroup is the group the server's four example kinds (Database,
// Queue, Worker, ReleaseDeploy) are registered under. A real deployment
// would ship additional groups the same way - RegisterKind has no
// built-in notion of which groups are "ours".
const builtinGroup = "example.mini-controlplane.io"
const builtinVersion = "v1"

type startCmd struct {
	InstanceName string        `default:"controlplane" env:"INSTANCE_NAME" help:"This control plane's own identity, used to compute deterministic external names."`
	Domain       string        `default:"example.internal" env:"DOMAIN" help:"Hostname suffix for network-exposed (Worker) resources."`
	ListenAddr   string        `default:":8080" env:"LISTEN_ADDR" help:"Address the REST API Surface listens on."`
	Workers      int           `default:"4" env:"WORKERS" help:"Number of reconcile worker goroutines."`
	TickInterval time.Duration `default:"1m" env:"TICK_INTERVAL" help:"Interval between periodic drift reconciliation ticks."`
	Debug        bool          `help:"Enable debug-level logging."`
}

type cli struct {
	Start startCmd `cmd:"" default:"1" help:"Start the control plane server."`
}

func main() {
	c := &cli{}
	kctx := kong.Parse(c,
		kong.Name("controlplane"),
		kong.Description("A minimal, self-hosted declarative control plane."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run())
}

func (c *startCmd) Run() error {
	zl := zap.New(zap.UseDevMode(c.Debug))
	log := logging.NewLogrLogger(zl)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st := store.NewMemory()
	q := queue.New()

	rec := reconciler.NewReconciler(st, q, c.InstanceName, c.Domain,
		reconciler.WithLogger(log),
		reconciler.WithTimeout(c.TickInterval),
	)

	if err := registerBuiltins(ctx, st, rec, log); err != nil {
		return errors.Wrap(err, "cannot register built-in kinds")
	}

	h := api.New(st, q, api.WithLogger(log))

	srv := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go rec.Run(ctx, c.Workers)
	go rec.RunDrift(ctx, c.TickInterval)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Info("error shutting down API server", "error", err)
		}
		q.ShutDown()
	}()

	log.Info("starting control plane", "addr", c.ListenAddr, "instance", c.InstanceName, "domain", c.Domain)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "API server failed")
	}
	return nil
}

// registerBuiltins ensures the server's four example kinds have CRDs on
// record (idempotently - AlreadyExists is expected on every restart) and
// wires each to its Provider Driver.
func registerBuiltins(ctx context.Context, st store.Store, rec *reconciler.Reconciler, log logging.Logger) error {
	builtins := []struct {
		kind, plural string
		scope        store.Scope
		drv          driverFor
	}{
		{"Database", "databases", store.ScopeNamespaced, func() driver.Driver { return driver.NewD1() }},
		{"Queue", "queues", store.ScopeNamespaced, func() driver.Driver { return driver.NewQueueKind() }},
		{"Worker", "workers", store.ScopeNamespaced, func() driver.Driver { return driver.NewWorker() }},
		{"ReleaseDeploy", "releasedeploys", store.ScopeNamespaced, newReleaseDeploy},
	}

	for _, b := range builtins {
		crd := store.CRD{Group: builtinGroup, Version: builtinVersion, Kind: b.kind, Plural: b.plural, Scope: b.scope}
		if _, err := st.PutCRD(ctx, crd); err != nil && !xerrors.Is(err, xerrors.KindAlreadyExists) {
			return errors.Wrapf(err, "cannot create built-in CRD %s", crd.Name())
		}
		rec.RegisterKind(builtinGroup, builtinVersion, b.plural, b.kind, b.drv())
		log.Debug("registered built-in kind", "kind", b.kind, "plural", b.plural)
	}
	return nil
}

type driverFor func() driver.Driver

// newReleaseDeploy wires the composite orchestrator to three simulated
// child drivers (owning Release, immutable Version, deployment Deploy)
// and a source-of-truth stub standing in for an external release registry.
func newReleaseDeploy() driver.Driver {
	sot := func(_ context.Context, spec json.RawMessage) (driver.ReleaseMetadata, error) {
		var in struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		}
		if len(spec) > 0 {
			if err := json.Unmarshal(spec, &in); err != nil {
				return driver.ReleaseMetadata{}, errors.Wrap(err, "cannot parse release spec")
			}
		}
		if in.Version == "" {
			in.Version = "latest"
		}
		return driver.ReleaseMetadata{Name: in.Name, Version: in.Version}, nil
	}
	return driver.NewReleaseDeploy(sot, driver.NewD1(), driver.NewD1(), driver.NewD1())
}
