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
	"time"

	"github.com/crossplane/mini-controlplane/internal/store"
)

// ObjectMeta mirrors the Kubernetes-style metadata envelope.
type ObjectMeta struct {
	Name              string     `json:"name"`
	Namespace         string     `json:"namespace,omitempty"`
	CreationTimestamp *time.Time `json:"creationTimestamp,omitempty"`
}

// Resource is the REST wire representation of one CRD instance:
// {apiVersion, kind, metadata:{...}, spec, status?}.
type Resource struct {
	APIVersion string          `json:"apiVersion"`
	Kind       string          `json:"kind"`
	Metadata   ObjectMeta      `json:"metadata"`
	Spec       json.RawMessage `json:"spec,omitempty"`
	Status     json.RawMessage `json:"status,omitempty"`
}

// ResourceList is the envelope for a list response: kind <Kind>List,
// items: [...].
type ResourceList struct {
	APIVersion string     `json:"apiVersion"`
	Kind       string     `json:"kind"`
	Items      []Resource `json:"items"`
}

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Message string `json:"message"`
}

// crdKind is the Kind REST responses use for CRD objects themselves.
const crdKind = "CustomResourceDefinition"

// CRDSpec is the REST wire representation of a CRD's spec fields.
type CRDSpec struct {
	Group      string          `json:"group"`
	Version    string          `json:"version"`
	Kind       string          `json:"kind"`
	Plural     string          `json:"plural"`
	ShortNames []string        `json:"shortNames,omitempty"`
	Schema     json.RawMessage `json:"schema,omitempty"`
	Scope      string          `json:"scope,omitempty"`
}

// CRDResource is the REST wire representation of one CRD.
type CRDResource struct {
	APIVersion string     `json:"apiVersion"`
	Kind       string     `json:"kind"`
	Metadata   ObjectMeta `json:"metadata"`
	Spec       CRDSpec    `json:"spec"`
}

// CRDList is the list envelope for GET .../customresourcedefinitions.
type CRDList struct {
	APIVersion string        `json:"apiVersion"`
	Kind       string        `json:"kind"`
	Items      []CRDResource `json:"items"`
}

func crdToResource(c store.CRD) CRDResource {
	ts := c.CreatedAt
	return CRDResource{
		APIVersion: crdGroupVersion,
		Kind:       crdKind,
		Metadata:   ObjectMeta{Name: c.Name(), CreationTimestamp: &ts},
		Spec: CRDSpec{
			Group: c.Group, Version: c.Version, Kind: c.Kind, Plural: c.Plural,
			ShortNames: c.ShortNames, Schema: c.Schema, Scope: string(c.Scope),
		},
	}
}

func instanceToResource(kind, group, version string, inst store.Instance) Resource {
	ts := inst.CreatedAt
	return Resource{
		APIVersion: group + "/" + version,
		Kind:       kind,
		Metadata: ObjectMeta{
			Name: inst.Name, Namespace: inst.Namespace, CreationTimestamp: &ts,
		},
		Spec:   inst.Spec,
		Status: inst.Status,
	}
}
