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

// Package queue implements at-least-once delivery of reconcile messages
// with ack/retry; ordering is not guaranteed. The transport itself is an
// abstract collaborator; Queue is the contract. WorkQueue, the shipped
// implementation, wraps k8s.io/client-go/util/workqueue's
// RateLimitingInterface - the same exponential-backoff primitive the
// pack's SAP-component-operator-runtime uses for its own retry helper,
// here used directly as the queue rather than just a rate limiter.
package queue

import "encoding/json"

// Action is the reconcile message's verb.
type Action string

// The two actions a Message may carry.
const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

// Message is one reconcile message. Status is only populated for delete
// messages, carrying the instance's last-known status so the reconciler
// can find provider identifiers for an instance the store has already
// forgotten: the delete path calls the provider's delete API using
// identifiers stored in the carried status.
type Message struct {
	Action    Action
	Group     string
	Version   string
	Kind      string
	Plural    string
	Namespace string
	Name      string
	Spec      json.RawMessage
	Status    json.RawMessage
}

// Key returns a stable per-instance identity used for logging. It ignores
// Action, so create and delete messages for the same instance share a key.
// WorkQueue does not deduplicate by Key: every Send is delivered.
func (m Message) Key() string {
	return m.Group + "/" + m.Version + "/" + m.Plural + "/" + m.Namespace + "/" + m.Name
}

// Queue is the Work Queue's contract.
type Queue interface {
	// Send enqueues msg for delivery. Delivery is at-least-once; Send never
	// blocks on a consumer.
	Send(msg Message)
	// Receive blocks until a message is available or the queue is shut
	// down, returning ok=false in the latter case.
	Receive() (d Delivery, ok bool)
	// ShutDown stops accepting new work and unblocks any pending Receive.
	ShutDown()
}

// Delivery is one message handed to a consumer, plus the ack/retry
// contract.
type Delivery struct {
	Message Message

	ack   func()
	retry func()
}

// Ack acknowledges successful processing of the message.
func (d Delivery) Ack() { d.ack() }

// Retry requests redelivery of the message, per the queue's backoff policy.
func (d Delivery) Retry() { d.retry() }
