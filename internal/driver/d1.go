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

// D1 is a database-like provider driver. It has no bindings and no health
// probe: a database instance isn't network-exposed the way a Worker is.
type D1 struct {
	backing *simulated
}

// NewD1 returns a D1 driver with its own simulated backing store.
func NewD1() *D1 {
	return &D1{backing: newSimulated()}
}

// Create implements Driver.
func (d *D1) Create(_ context.Context, _ json.RawMessage, name string) (CreateResult, error) {
	id, err := d.backing.create(name)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{ExternalID: id}, nil
}

// List implements Driver.
func (d *D1) List(_ context.Context) ([]ListedObject, error) {
	return d.backing.list(), nil
}

// Delete implements Driver.
func (d *D1) Delete(_ context.Context, id string) error {
	return d.backing.delete(id)
}

// Seed registers a pre-existing provider object, for adoption tests.
func (d *D1) Seed(name, id string) { d.backing.seed(name, id) }
