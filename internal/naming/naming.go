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

// Package naming computes the deterministic external-world names the
// control plane gives provider objects it creates. It is deliberately
// dependency-free: it's a pure string formula, and the formula's stability
// is what the drift scan's orphan detection depends on - see DESIGN.md for
// why this one package stays stdlib-only rather than reaching for a
// templating library.
package naming

import "strings"

// ExternalName computes the deterministic external-world name for an
// instance:
//
//	"{resourceName}-{namespace|'c'}-{plural}-{dashed(group)}-{instance}"
//
// resourceName is the control plane's own identity (INSTANCE_NAME), not
// the resource instance's own name; instance is the resource's own name.
func ExternalName(resourceName, group, plural, namespace, instance string) string {
	ns := namespace
	if ns == "" {
		ns = "c"
	}
	return strings.Join([]string{resourceName, ns, plural, dashed(group), instance}, "-")
}

// WorkerHostname computes a custom worker hostname:
//
//	"{resourceName}.{instance}.{domain}"
func WorkerHostname(resourceName, instance, domain string) string {
	return resourceName + "." + instance + "." + domain
}

func dashed(group string) string {
	return strings.ReplaceAll(group, ".", "-")
}

// Matches reports whether candidate looks like it was produced by
// ExternalName for the given resourceName and plural, regardless of
// namespace/group/instance. This is the orphan-detection filter: the drift
// scan only ever deletes provider objects whose name matches this pattern,
// never an unrelated object a human created by hand.
func Matches(candidate, resourceName, plural string) bool {
	prefix := resourceName + "-"
	if !strings.HasPrefix(candidate, prefix) {
		return false
	}
	rest := strings.TrimPrefix(candidate, prefix)
	// rest is "{ns}-{plural}-{dashed-group}-{instance}"; plural must appear
	// as a whole dash-delimited segment, not merely as a substring, or a
	// resource named e.g. "foosbar" would be mistaken for kind "foos".
	// Any segment counts, not only the plural's own position, so an object
	// of another kind whose namespace, group or instance name contains
	// "-foos-" as a segment (e.g. "prod-c-bars-x-io-foos") also matches
	// plural "foos". This is an accepted sharp edge of the name scheme.
	segments := strings.Split(rest, "-")
	for _, s := range segments {
		if s == plural {
			return true
		}
	}
	return false
}
