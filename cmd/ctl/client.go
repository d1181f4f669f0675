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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/crossplane/mini-controlplane/internal/api"
)

// client is a thin REST client for the control plane's API Surface. It
// polls get/list endpoints; it never opens a watch/stream connection.
type client struct {
	server string
	http   *http.Client
}

func newClient(server string) *client {
	return &client{
		server: strings.TrimRight(server, "/"),
		http:   http.DefaultClient,
	}
}

func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "cannot encode request body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close() //nolint:errcheck // best-effort close on an error path
		var eb api.ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return nil, errors.Errorf("server returned %d: %s", resp.StatusCode, eb.Message)
	}
	return resp, nil
}

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close() //nolint:errcheck // best-effort close after a successful read
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "cannot decode response body")
}

// discover resolves kind to its (plural, namespaced) pair by querying the
// server's own discovery endpoint for (group, version), the same
// resolution a real Kubernetes client performs before addressing a
// resource by kind.
func (c *client) discover(ctx context.Context, group, version, kind string) (plural string, namespaced bool, err error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/apis/%s/%s", group, version), nil)
	if err != nil {
		return "", false, err
	}
	var list api.APIResourceList
	if err := decodeJSON(resp, &list); err != nil {
		return "", false, err
	}
	for _, r := range list.Resources {
		if r.Kind == kind {
			return r.Name, r.Namespaced, nil
		}
	}
	return "", false, errors.Errorf("kind %q not found in %s/%s", kind, group, version)
}

// resourcePath builds the REST path for a (group, version, plural),
// namespaced or cluster-scoped, optionally addressing a single name.
func resourcePath(group, version, plural, namespace, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/apis/%s/%s/", group, version)
	if namespace != "" {
		fmt.Fprintf(&b, "namespaces/%s/", namespace)
	}
	b.WriteString(plural)
	if name != "" {
		b.WriteString("/" + name)
	}
	return b.String()
}
