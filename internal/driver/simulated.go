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
	"sync"

	"github.com/google/uuid"

	"github.com/crossplane/mini-controlplane/internal/xerrors"
)

// simulated is the shared in-memory "external system" backing D1, Queue and
// Worker: a set of named objects keyed by their deterministic name, each
// assigned a provider id on creation. Real drivers would replace this with
// an HTTP client against an actual provider API; this gives every example
// driver genuine Create/List/Delete/adoption semantics to exercise
// against in tests.
type simulated struct {
	mu      sync.Mutex
	byName  map[string]string // name -> id
	objects map[string]string // id -> name
}

func newSimulated() *simulated {
	return &simulated{byName: map[string]string{}, objects: map[string]string{}}
}

func (s *simulated) create(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return "", xerrors.New(xerrors.KindAlreadyExists, "object "+name+" already exists")
	}
	id := uuid.NewString()
	s.byName[name] = id
	s.objects[id] = name
	return id, nil
}

func (s *simulated) list() []ListedObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ListedObject, 0, len(s.objects))
	for id, name := range s.objects {
		out = append(out, ListedObject{Name: name, ID: id})
	}
	return out
}

func (s *simulated) delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.objects[id]
	if !ok {
		// Best-effort: deleting an id the provider doesn't have is a no-op.
		return nil
	}
	delete(s.objects, id)
	delete(s.byName, name)
	return nil
}

// seed registers a pre-existing object directly, bypassing create's
// AlreadyExists check. Used by tests to set up adoption scenarios.
func (s *simulated) seed(name, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byName[name] = id
	s.objects[id] = name
}
