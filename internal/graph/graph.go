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

// Package graph implements the dependency graph across resource instances
// that `ctl graph` renders: nodes are resource instances, and edges are the
// spec.dependencies[] references between them. The reconciler does not use
// it; its dependency gate and fan-out query the store directly.
package graph

import (
	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/emicklei/dot"
)

// Node identifies a graph node: one resource instance.
type Node struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
}

// ID is a stable string identity for a Node, used as the map key.
func (n Node) ID() string {
	return n.Group + "/" + n.Kind + "/" + n.Namespace + "/" + n.Name
}

// Graph is a directed graph of resource instances, edges pointing from a
// dependent instance to the dependency it declared in spec.dependencies[].
// The dependency graph is assumed acyclic by convention, not enforced:
// AddEdge accepts cycles, and Sort reports one as an error.
type Graph struct {
	nodes map[string]Node
	edges map[string][]string // node ID -> dependency node IDs
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: map[string]Node{}, edges: map[string][]string{}}
}

// AddNode registers n, implying no edges. Safe to call more than once for
// the same node.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.ID()] = n
}

// AddEdge records that "from" depends on "to". Both nodes are implied into
// the graph if not already present.
func (g *Graph) AddEdge(from, to Node) {
	g.AddNode(from)
	g.AddNode(to)
	fid, tid := from.ID(), to.ID()
	for _, existing := range g.edges[fid] {
		if existing == tid {
			return
		}
	}
	g.edges[fid] = append(g.edges[fid], tid)
}

// Neighbors returns the direct dependencies of n.
func (g *Graph) Neighbors(n Node) []Node {
	out := make([]Node, 0, len(g.edges[n.ID()]))
	for _, id := range g.edges[n.ID()] {
		out = append(out, g.nodes[id])
	}
	return out
}

// Sort performs a topological sort (dependencies before dependents),
// returning a cycle error if one is found. Neither the reconciler nor
// `ctl graph` calls it.
func (g *Graph) Sort() ([]Node, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var order []Node

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return errors.Errorf("dependency cycle detected at %s", id)
		}
		state[id] = visiting
		for _, dep := range g.edges[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, g.nodes[id])
		return nil
	}

	for id := range g.nodes {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// DOT renders the graph in Graphviz dot format, for `ctl graph`.
func (g *Graph) DOT() string {
	gr := dot.NewGraph(dot.Directed)
	drawn := map[string]dot.Node{}

	node := func(n Node) dot.Node {
		if d, ok := drawn[n.ID()]; ok {
			return d
		}
		d := gr.Node(n.ID()).Label(n.Kind + "/" + n.Name)
		drawn[n.ID()] = d
		return d
	}

	for id, n := range g.nodes {
		from := node(n)
		for _, depID := range g.edges[id] {
			to := node(g.nodes[depID])
			gr.Edge(from, to)
		}
	}
	return gr.String()
}
