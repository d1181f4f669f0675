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

package queue

import (
	"sync"

	"k8s.io/client-go/util/workqueue"
)

// WorkQueue is the default Queue implementation, backed by client-go's
// generic rate-limiting workqueue. It delivers Message values keyed by a
// monotonically increasing id rather than the message itself, since
// Message's json.RawMessage fields make it unsuitable as a workqueue item
// (workqueue items are compared and deduplicated by equality).
type WorkQueue struct {
	mu       sync.Mutex
	payloads map[uint64]Message
	next     uint64

	q workqueue.TypedRateLimitingInterface[uint64]
}

// New returns a WorkQueue ready to accept Send calls.
func New() *WorkQueue {
	return &WorkQueue{
		payloads: map[uint64]Message{},
		q: workqueue.NewTypedRateLimitingQueue[uint64](
			workqueue.DefaultTypedControllerRateLimiter[uint64](),
		),
	}
}

// Send implements Queue.
func (w *WorkQueue) Send(msg Message) {
	w.mu.Lock()
	id := w.next
	w.next++
	w.payloads[id] = msg
	w.mu.Unlock()

	w.q.Add(id)
}

// Receive implements Queue.
func (w *WorkQueue) Receive() (Delivery, bool) {
	id, shutdown := w.q.Get()
	if shutdown {
		return Delivery{}, false
	}

	w.mu.Lock()
	msg := w.payloads[id]
	w.mu.Unlock()

	d := Delivery{
		Message: msg,
		ack: func() {
			w.q.Done(id)
			w.q.Forget(id)
			w.mu.Lock()
			delete(w.payloads, id)
			w.mu.Unlock()
		},
		retry: func() {
			w.q.Done(id)
			w.q.AddRateLimited(id)
		},
	}
	return d, true
}

// ShutDown implements Queue.
func (w *WorkQueue) ShutDown() {
	w.q.ShutDown()
}
