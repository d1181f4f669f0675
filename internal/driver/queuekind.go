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
)

// QueueKind is a message-queue-like provider driver. Named QueueKind, not
// Queue, to avoid colliding with internal/queue.Queue (the Work Queue) -
// these are unrelated concepts that happen to share a name.
type QueueKind struct {
	backing *simulated
}

// NewQueueKind returns a QueueKind driver with its own simulated backing store.
func NewQueueKind() *QueueKind {
	return &QueueKind{backing: newSimulated()}
}

// Create implements Driver.
func (q *QueueKind) Create(_ context.Context, _ json.RawMessage, name string) (CreateResult, error) {
	id, err := q.backing.create(name)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{ExternalID: id}, nil
}

// List implements Driver.
func (q *QueueKind) List(_ context.Context) ([]ListedObject, error) {
	return q.backing.list(), nil
}

// Delete implements Driver.
func (q *QueueKind) Delete(_ context.Context, id string) error {
	return q.backing.delete(id)
}

// Seed registers a pre-existing provider object, for adoption tests.
func (q *QueueKind) Seed(name, id string) { q.backing.seed(name, id) }
