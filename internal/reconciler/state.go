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
	"strings"

	"github.com/crossplane/mini-controlplane/internal/driver"
	"github.com/crossplane/mini-controlplane/internal/store"
)

const healthCheckErrorLimit = 500

// writeStatus encodes view and overwrites the stored status for the
// instance identified by (reg.Group, reg.Version, reg.Plural, namespace,
// name). Status overwrites are last-writer-wins: callers on both the
// event path and the drift path hold the full view they mean to persist
// and call this once, never a partial-field merge.
func (r *Reconciler) writeStatus(ctx context.Context, reg registration, namespace, name string, view store.StatusView) error {
	raw, err := store.EncodeStatus(view)
	if err != nil {
		return err
	}
	return r.store.SetStatus(ctx, reg.Group, reg.Version, reg.Plural, namespace, name, raw)
}

// statusFromCreate builds the Ready StatusView for a successful (or
// adopted) create, folding the driver-specific identifiers of
// driver.CreateResult into Extra so they survive the status round trip
// alongside the common fields.
func statusFromCreate(res driver.CreateResult) store.StatusView {
	extra := map[string]any{}
	if res.ExternalID != "" {
		extra["externalId"] = res.ExternalID
	}
	if res.Endpoint != "" {
		extra["endpoint"] = res.Endpoint
	}
	for k, v := range res.Extra {
		extra[k] = v
	}
	return store.StatusView{State: store.StateReady, Extra: extra}
}

// childErrorSummary joins any derived-child failures a composite driver
// reported (ReleaseDeploy's "versionError"/"deployError" keys) into a single
// message, or returns "" if every child succeeded.
func childErrorSummary(extra map[string]string) string {
	var parts []string
	for _, role := range []string{"version", "deploy"} {
		if msg := extra[role+"Error"]; msg != "" {
			parts = append(parts, role+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

// stringExtra reads a string-valued key out of a decoded StatusView's Extra
// map, returning "" if absent or not a string (e.g. a numeric JSON value).
func stringExtra(extra map[string]any, key string) string {
	s, _ := extra[key].(string)
	return s
}

// truncateError caps an error message at healthCheckErrorLimit bytes.
func truncateError(s string) string {
	if len(s) <= healthCheckErrorLimit {
		return s
	}
	return s[:healthCheckErrorLimit]
}
