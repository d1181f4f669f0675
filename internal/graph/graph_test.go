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

package graph

import "testing"

func TestSortOrdersDependenciesFirst(t *testing.T) {
	a := Node{Group: "x.io", Kind: "Foo", Name: "a"}
	b := Node{Group: "x.io", Kind: "Foo", Name: "b"}
	c := Node{Group: "x.io", Kind: "Foo", Name: "c"}

	g := New()
	g.AddEdge(c, b) // c depends on b
	g.AddEdge(b, a) // b depends on a

	order, err := g.Sort()
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}

	pos := map[string]int{}
	for i, n := range order {
		pos[n.ID()] = i
	}
	if pos[a.ID()] > pos[b.ID()] || pos[b.ID()] > pos[c.ID()] {
		t.Fatalf("Sort order %v does not place dependencies before dependents", order)
	}
}

func TestSortDetectsCycle(t *testing.T) {
	a := Node{Group: "x.io", Kind: "Foo", Name: "a"}
	b := Node{Group: "x.io", Kind: "Foo", Name: "b"}

	g := New()
	g.AddEdge(a, b)
	g.AddEdge(b, a)

	if _, err := g.Sort(); err == nil {
		t.Fatal("Sort: got nil error, want cycle error")
	}
}

func TestNeighbors(t *testing.T) {
	a := Node{Group: "x.io", Kind: "Foo", Name: "a"}
	b := Node{Group: "x.io", Kind: "Foo", Name: "b"}

	g := New()
	g.AddEdge(b, a)

	got := g.Neighbors(b)
	if len(got) != 1 || got[0].ID() != a.ID() {
		t.Fatalf("Neighbors(b): got %v, want [%v]", got, a)
	}
}
