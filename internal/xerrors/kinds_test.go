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

package xerrors

import (
	"testing"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

func TestIs(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind Kind
		want bool
	}{
		"MatchingKind": {
			err:  New(KindNotFound, "boom"),
			kind: KindNotFound,
			want: true,
		},
		"WrappedMatchingKind": {
			err:  errors.Wrap(New(KindProviderTransient, "boom"), "while doing a thing"),
			kind: KindProviderTransient,
			want: true,
		},
		"DifferentKind": {
			err:  New(KindNotFound, "boom"),
			kind: KindAlreadyExists,
			want: false,
		},
		"PlainError": {
			err:  errors.New("boom"),
			kind: KindNotFound,
			want: false,
		},
		"NilError": {
			err:  nil,
			kind: KindNotFound,
			want: false,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := Is(tc.err, tc.kind)
			if got != tc.want {
				t.Errorf("Is(%v, %v): got %t, want %t", tc.err, tc.kind, got, tc.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, KindNotFound, "unreached"); err != nil {
		t.Errorf("Wrap(nil, ...): got %v, want nil", err)
	}
}

func TestKindOf(t *testing.T) {
	err := errors.Wrap(New(KindChildSideEffect, "bind failed"), "binding custom domain")

	k, ok := KindOf(err)
	if !ok {
		t.Fatal("KindOf: got !ok, want ok")
	}
	if k != KindChildSideEffect {
		t.Errorf("KindOf: got %v, want %v", k, KindChildSideEffect)
	}
}
