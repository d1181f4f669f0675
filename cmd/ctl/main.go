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

// Package main implements ctl, a thin REST client for the control plane's
// API Surface: apply, get, delete and a graph diagnostic. This client
// polls; it never opens a watch/stream connection.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"sigs.k8s.io/yaml"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/crossplane/mini-controlplane/internal/api"
	"github.com/crossplane/mini-controlplane/internal/graph"
	"github.com/crossplane/mini-controlplane/internal/store"
)

type cli struct {
	Server string `default:"http://localhost:8080" env:"CONTROLPLANE_SERVER" help:"Base URL of the control plane's API Surface."`

	Apply  applyCmd  `cmd:"" help:"Apply a manifest file, creating the resource instance it describes."`
	Get    getCmd    `cmd:"" help:"Get one or all instances of a kind."`
	Delete deleteCmd `cmd:"" help:"Delete one instance of a kind."`
	Graph  graphCmd  `cmd:"" help:"Render the dependency graph of every stored instance as Graphviz dot."`
}

func main() {
	c := &cli{}
	kctx := kong.Parse(c,
		kong.Name("ctl"),
		kong.Description("A thin REST client for the mini control plane."),
		kong.UsageOnError(),
		kong.Vars{"crdGroup": api.CRDGroup},
	)
	kctx.FatalIfErrorf(kctx.Run(c))
}

type applyCmd struct {
	File string `arg:"" help:"Path to a YAML or JSON manifest." type:"existingfile"`
}

func (a *applyCmd) Run(c *cli) error {
	raw, err := os.ReadFile(a.File)
	if err != nil {
		return errors.Wrap(err, "cannot read manifest")
	}
	var body api.Resource
	if err := yaml.Unmarshal(raw, &body); err != nil {
		return errors.Wrap(err, "cannot parse manifest")
	}

	group, version, err := splitAPIVersion(body.APIVersion)
	if err != nil {
		return err
	}

	cl := newClient(c.Server)
	ctx := context.Background()

	plural, namespaced, err := cl.discover(ctx, group, version, body.Kind)
	if err != nil {
		return err
	}
	ns := body.Metadata.Namespace
	if !namespaced {
		ns = ""
	}

	resp, err := cl.do(ctx, http.MethodPost, resourcePath(group, version, plural, ns, ""), body)
	if err != nil {
		return err
	}
	var out api.Resource
	if err := decodeJSON(resp, &out); err != nil {
		return err
	}
	fmt.Printf("%s/%s created\n", strings.ToLower(out.Kind), out.Metadata.Name)
	return nil
}

type getCmd struct {
	Group     string `required:"" help:"API group of the kind."`
	Version   string `default:"v1" help:"API version of the kind."`
	Kind      string `arg:"" help:"Kind to get."`
	Name      string `arg:"" optional:"" help:"Name of a single instance; omitted lists every instance of the kind."`
	Namespace string `short:"n" help:"Namespace to scope the request to."`
}

func (g *getCmd) Run(c *cli) error {
	cl := newClient(c.Server)
	ctx := context.Background()

	plural, namespaced, err := cl.discover(ctx, g.Group, g.Version, g.Kind)
	if err != nil {
		return err
	}
	ns := g.Namespace
	if !namespaced {
		ns = ""
	}

	resp, err := cl.do(ctx, http.MethodGet, resourcePath(g.Group, g.Version, plural, ns, g.Name), nil)
	if err != nil {
		return err
	}

	if g.Name != "" {
		var out api.Resource
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		return printYAML(out)
	}
	var out api.ResourceList
	if err := decodeJSON(resp, &out); err != nil {
		return err
	}
	return printYAML(out)
}

type deleteCmd struct {
	Group     string `required:"" help:"API group of the kind."`
	Version   string `default:"v1" help:"API version of the kind."`
	Kind      string `arg:"" help:"Kind to delete an instance of."`
	Name      string `arg:"" help:"Name of the instance to delete."`
	Namespace string `short:"n" help:"Namespace the instance lives in."`
}

func (d *deleteCmd) Run(c *cli) error {
	cl := newClient(c.Server)
	ctx := context.Background()

	plural, namespaced, err := cl.discover(ctx, d.Group, d.Version, d.Kind)
	if err != nil {
		return err
	}
	ns := d.Namespace
	if !namespaced {
		ns = ""
	}

	if _, err := cl.do(ctx, http.MethodDelete, resourcePath(d.Group, d.Version, plural, ns, d.Name), nil); err != nil {
		return err
	}
	fmt.Printf("%s/%s deleted\n", strings.ToLower(d.Kind), d.Name)
	return nil
}

type graphCmd struct {
	CRDGroup string `default:"${crdGroup}" help:"Group the CRD-management built-in lives under."`
}

// Run renders every stored instance and its spec.dependencies[] edges as a
// Graphviz dot graph, by listing every CRD's instances across every group.
func (gc *graphCmd) Run(c *cli) error {
	cl := newClient(c.Server)
	ctx := context.Background()

	resp, err := cl.do(ctx, http.MethodGet, resourcePath(gc.CRDGroup, "v1", "customresourcedefinitions", "", ""), nil)
	if err != nil {
		return err
	}
	var crds api.CRDList
	if err := decodeJSON(resp, &crds); err != nil {
		return err
	}

	g := graph.New()
	for _, crd := range crds.Items {
		resp, err := cl.do(ctx, http.MethodGet, resourcePath(crd.Spec.Group, crd.Spec.Version, crd.Spec.Plural, "", ""), nil)
		if err != nil {
			return err
		}
		var list api.ResourceList
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}
		for _, item := range list.Items {
			from := graph.Node{Group: crd.Spec.Group, Kind: crd.Spec.Kind, Namespace: item.Metadata.Namespace, Name: item.Metadata.Name}
			deps, err := store.ExtractDependencies(item.Spec)
			if err != nil {
				return errors.Wrapf(err, "cannot parse dependencies of %s/%s", crd.Spec.Kind, item.Metadata.Name)
			}
			if len(deps) == 0 {
				g.AddNode(from)
			}
			for _, d := range deps {
				depGroup := d.Group
				if depGroup == "" {
					depGroup = crd.Spec.Group
				}
				g.AddEdge(from, graph.Node{Group: depGroup, Kind: d.Kind, Name: d.Name})
			}
		}
	}

	fmt.Println(g.DOT())
	return nil
}

func splitAPIVersion(apiVersion string) (group, version string, err error) {
	parts := strings.SplitN(apiVersion, "/", 2)
	if len(parts) != 2 {
		return "", "", errors.Errorf("manifest apiVersion %q must be \"group/version\"", apiVersion)
	}
	return parts[0], parts[1], nil
}

func printYAML(v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "cannot render output")
	}
	fmt.Print(string(b))
	return nil
}
