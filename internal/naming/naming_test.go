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

package naming

import "testing"

func TestExternalName(t *testing.T) {
	cases := map[string]struct {
		resourceName, group, plural, namespace, instance string
		want                                              string
	}{
		"Namespaced": {
			resourceName: "prod", group: "x.io", plural: "foos", namespace: "team-a", instance: "a",
			want: "prod-team-a-foos-x-io-a",
		},
		"ClusterScoped": {
			resourceName: "prod", group: "x.io", plural: "foos", namespace: "", instance: "a",
			want: "prod-c-foos-x-io-a",
		},
		"MultiSegmentGroup": {
			resourceName: "prod", group: "cache.x.io", plural: "queues", namespace: "", instance: "q1",
			want: "prod-c-queues-cache-x-io-q1",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := ExternalName(tc.resourceName, tc.group, tc.plural, tc.namespace, tc.instance)
			if got != tc.want {
				t.Errorf("ExternalName(): got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWorkerHostname(t *testing.T) {
	got := WorkerHostname("prod", "api", "workers.example.com")
	want := "prod.api.workers.example.com"
	if got != want {
		t.Errorf("WorkerHostname(): got %q, want %q", got, want)
	}
}

// TestMatchesNoOrphanOnRename checks that names which merely resemble the
// pattern, but don't carry the exact plural segment, never match.
func TestMatchesNoOrphanOnRename(t *testing.T) {
	cases := map[string]struct {
		candidate, resourceName, plural string
		want                            bool
	}{
		"ExactMatch": {
			candidate: "prod-c-foos-x-io-a", resourceName: "prod", plural: "foos",
			want: true,
		},
		"DifferentResourceName": {
			candidate: "staging-c-foos-x-io-a", resourceName: "prod", plural: "foos",
			want: false,
		},
		"SubstringNotSegment": {
			candidate: "prod-c-foosbar-x-io-a", resourceName: "prod", plural: "foos",
			want: false,
		},
		"HumanCreatedUnrelatedName": {
			candidate: "my-hand-rolled-object", resourceName: "prod", plural: "foos",
			want: false,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := Matches(tc.candidate, tc.resourceName, tc.plural)
			if got != tc.want {
				t.Errorf("Matches(%q): got %t, want %t", tc.candidate, got, tc.want)
			}
		})
	}
}
