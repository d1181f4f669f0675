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

package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/crossplane/mini-controlplane/internal/store"
)

// tableAcceptMarker is the Kubernetes-style Accept content-type variant
// that requests tabular rendering.
const tableAcceptMarker = "as=Table"

// wantsTable reports whether req's Accept header carries the tabular
// content-type variant.
func wantsTable(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), tableAcceptMarker)
}

// ColumnDefinition is one column of a Table response.
type ColumnDefinition struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Row is one rendered object in a Table response: its rendered cells
// alongside the full underlying object.
type Row struct {
	Cells  []any           `json:"cells"`
	Object json.RawMessage `json:"object"`
}

// Table is the tabular list response.
type Table struct {
	Kind              string             `json:"kind"`
	APIVersion        string             `json:"apiVersion"`
	ColumnDefinitions []ColumnDefinition `json:"columnDefinitions"`
	Rows              []Row              `json:"rows"`
}

const tableAPIVersion = "meta.k8s.io/v1"

// clusterColumns / namespacedColumns are the two- and three-column
// layouts: Name, [Namespace,] Age.
var (
	clusterColumns    = []ColumnDefinition{{Name: "Name", Type: "string"}, {Name: "Age", Type: "string"}}
	namespacedColumns = []ColumnDefinition{{Name: "Name", Type: "string"}, {Name: "Namespace", Type: "string"}, {Name: "Age", Type: "string"}}
)

// age renders the time since created as a Go duration string: "0s" under
// a minute, then rounded to the second (under an hour), the minute (under
// a day) or the hour, e.g. "5m30s", "2h0m0s".
func age(created time.Time, now time.Time) string {
	d := now.Sub(created)
	switch {
	case d < time.Minute:
		return "0s"
	case d < time.Hour:
		return d.Round(time.Second).String()
	case d < 24*time.Hour:
		return d.Round(time.Minute).String()
	default:
		return d.Round(time.Hour).String()
	}
}

// resourceTable renders instances as a Table, with the three-column
// layout when namespaced is true and the two-column one otherwise (the
// caller passes true from the namespaced route, false from the
// cluster-scoped one).
func resourceTable(kind, group, version string, instances []store.Instance, namespaced bool, now time.Time) Table {
	t := Table{Kind: "Table", APIVersion: tableAPIVersion}
	if namespaced {
		t.ColumnDefinitions = namespacedColumns
	} else {
		t.ColumnDefinitions = clusterColumns
	}

	for _, inst := range instances {
		obj, _ := json.Marshal(instanceToResource(kind, group, version, inst))
		var cells []any
		if namespaced {
			cells = []any{inst.Name, inst.Namespace, age(inst.CreatedAt, now)}
		} else {
			cells = []any{inst.Name, age(inst.CreatedAt, now)}
		}
		t.Rows = append(t.Rows, Row{Cells: cells, Object: obj})
	}
	return t
}

// crdTable renders CRDs as a (cluster-scoped) Table.
func crdTable(crds []store.CRD, now time.Time) Table {
	t := Table{Kind: "Table", APIVersion: tableAPIVersion, ColumnDefinitions: clusterColumns}
	for _, c := range crds {
		obj, _ := json.Marshal(crdToResource(c))
		t.Rows = append(t.Rows, Row{Cells: []any{c.Name(), age(c.CreatedAt, now)}, Object: obj})
	}
	return t
}
