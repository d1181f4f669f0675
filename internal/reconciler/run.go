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
	"sync"

	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// Run starts workers goroutines, each pulling deliveries off the queue and
// dispatching them to Reconcile under the ack/retry contract. Any number
// of workers may run in parallel. Run blocks until ctx is cancelled, then
// waits for every worker to exit; a worker exits only once Receive reports
// the queue shut down, so Run returns after both have happened.
func (r *Reconciler) Run(ctx context.Context, workers int) {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
}

func (r *Reconciler) worker(ctx context.Context) {
	for {
		d, ok := r.queue.Receive()
		if !ok {
			return
		}

		err := r.Reconcile(ctx, d.Message)
		switch {
		case err == nil:
			d.Ack()
		case xerrors.Is(err, xerrors.KindProviderTransient):
			d.Retry()
		default:
			// An unexpected, non-classified error (e.g. a store failure) is
			// still retriable: nothing about it is permanent, and a
			// timed-out or failed attempt should be retried rather than
			// dropped.
			r.log.Info("reconcile failed, will retry", "key", d.Message.Key(), "error", err)
			d.Retry()
		}
	}
}
