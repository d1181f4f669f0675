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

// Package fake provides a function-field test double for driver.Driver and
// its optional capability interfaces, in the style of
// crossplane-runtime/pkg/test's MockClient: a struct whose fields are
// swappable functions, so a test can override only the calls it cares about.
package fake

import (
	"context"
	"encoding/json"

	"github.com/crossplane/mini-controlplane/internal/driver"
)

// Driver is a fully pluggable driver.Driver. A nil function field panics if
// called, same as an unset MockClient method, so tests notice calls they
// forgot to stub.
type Driver struct {
	CreateFn func(ctx context.Context, spec json.RawMessage, name string) (driver.CreateResult, error)
	ListFn   func(ctx context.Context) ([]driver.ListedObject, error)
	DeleteFn func(ctx context.Context, id string) error

	GetBindingsFn func(ctx context.Context, id string) ([]driver.Binding, error)
	PutBindingsFn func(ctx context.Context, id string, bindings []driver.Binding) error

	HealthFn func(ctx context.Context, endpoint string) error
}

// NewCreateFn returns a CreateFn that always returns result, err - the
// common case of a test that doesn't care about the input.
func NewCreateFn(result driver.CreateResult, err error) func(context.Context, json.RawMessage, string) (driver.CreateResult, error) {
	return func(context.Context, json.RawMessage, string) (driver.CreateResult, error) { return result, err }
}

// NewListFn returns a ListFn that always returns objs, err.
func NewListFn(objs []driver.ListedObject, err error) func(context.Context) ([]driver.ListedObject, error) {
	return func(context.Context) ([]driver.ListedObject, error) { return objs, err }
}

// NewDeleteFn returns a DeleteFn that always returns err.
func NewDeleteFn(err error) func(context.Context, string) error {
	return func(context.Context, string) error { return err }
}

// Create implements driver.Driver.
func (d *Driver) Create(ctx context.Context, spec json.RawMessage, name string) (driver.CreateResult, error) {
	return d.CreateFn(ctx, spec, name)
}

// List implements driver.Driver.
func (d *Driver) List(ctx context.Context) ([]driver.ListedObject, error) { return d.ListFn(ctx) }

// Delete implements driver.Driver.
func (d *Driver) Delete(ctx context.Context, id string) error { return d.DeleteFn(ctx, id) }

// GetBindings implements driver.BindingDriver by calling GetBindingsFn.
func (d *Driver) GetBindings(ctx context.Context, id string) ([]driver.Binding, error) {
	return d.GetBindingsFn(ctx, id)
}

// PutBindings implements driver.BindingDriver by calling PutBindingsFn.
func (d *Driver) PutBindings(ctx context.Context, id string, bindings []driver.Binding) error {
	return d.PutBindingsFn(ctx, id, bindings)
}

// Health implements driver.HealthDriver by calling HealthFn.
func (d *Driver) Health(ctx context.Context, endpoint string) error {
	return d.HealthFn(ctx, endpoint)
}
