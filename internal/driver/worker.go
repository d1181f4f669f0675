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
	"net/http"
	"sync"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Worker is a network-exposed provider driver: it implements BindingDriver
// (custom-domain-style bindings) and HealthDriver, in addition to the
// base Driver contract.
type Worker struct {
	backing *simulated

	mu       sync.Mutex
	bindings map[string][]Binding // provider id -> bound objects

	// httpClient issues the health probe's GET. Tests substitute a client
	// whose Transport stubs the response instead of hitting the network.
	httpClient *http.Client
}

// NewWorker returns a Worker driver with its own simulated backing store
// and a real HTTP client for health probes.
func NewWorker() *Worker {
	return &Worker{
		backing:    newSimulated(),
		bindings:   map[string][]Binding{},
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// WithHTTPClient overrides the client used for health probes, for tests.
func (w *Worker) WithHTTPClient(c *http.Client) *Worker {
	w.httpClient = c
	return w
}

// Create implements Driver. The endpoint is left empty: the reconciler's
// health probe computes it via naming.WorkerHostname when status carries
// none - Worker itself only knows about the provider's id space.
func (w *Worker) Create(_ context.Context, _ json.RawMessage, name string) (CreateResult, error) {
	id, err := w.backing.create(name)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{ExternalID: id}, nil
}

// List implements Driver.
func (w *Worker) List(_ context.Context) ([]ListedObject, error) {
	return w.backing.list(), nil
}

// Delete implements Driver.
func (w *Worker) Delete(_ context.Context, id string) error {
	w.mu.Lock()
	delete(w.bindings, id)
	w.mu.Unlock()
	return w.backing.delete(id)
}

// Seed registers a pre-existing provider object, for adoption tests.
func (w *Worker) Seed(name, id string) { w.backing.seed(name, id) }

// GetBindings implements BindingDriver.
func (w *Worker) GetBindings(_ context.Context, id string) ([]Binding, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Binding(nil), w.bindings[id]...), nil
}

// PutBindings implements BindingDriver.
func (w *Worker) PutBindings(_ context.Context, id string, bindings []Binding) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bindings[id] = append([]Binding(nil), bindings...)
	return nil
}

// Health implements HealthDriver: a GET against endpoint.
func (w *Worker) Health(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+endpoint+"/healthz", nil)
	if err != nil {
		return errors.Wrap(err, "cannot build health check request")
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "health check request failed")
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on a read-only probe

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
