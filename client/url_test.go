package client

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildURL(t *testing.T) {
	testCases := map[string]struct {
		base   string
		path   string
		params Params
		exp    string
	}{
		"joinsWithOneSlash": {
			base: "https://api.example.com/",
			path: "/users",
			exp:  "https://api.example.com/users",
		},
		"addsMissingSlash": {
			base: "https://api.example.com",
			path: "users",
			exp:  "https://api.example.com/users",
		},
		"noSlashesEitherSide": {
			base: "https://api.example.com/v1",
			path: "users",
			exp:  "https://api.example.com/v1/users",
		},
		"absolutePathIgnoresBase": {
			base: "https://api.example.com",
			path: "https://other.example.com/x",
			exp:  "https://other.example.com/x",
		},
		"emptyBase": {
			path: "/users",
			exp:  "/users",
		},
		"paramsInOrder": {
			base:   "http://h",
			path:   "/u",
			params: Params{{Key: "b", Value: 2}, {Key: "a", Value: "x"}},
			exp:    "http://h/u?b=2&a=x",
		},
		"nilSkipped": {
			base:   "http://h",
			path:   "/u",
			params: Params{{Key: "a", Value: nil}, {Key: "b", Value: 0}},
			exp:    "http://h/u?b=0",
		},
		"allNilNoQuestionMark": {
			base:   "http://h",
			path:   "/u",
			params: Params{{Key: "a", Value: nil}},
			exp:    "http://h/u",
		},
		"existingQueryUsesAmpersand": {
			base:   "http://h",
			path:   "/u?x=1",
			params: Params{{Key: "y", Value: true}},
			exp:    "http://h/u?x=1&y=true",
		},
		"escapesKeysAndValues": {
			base:   "http://h",
			path:   "/u",
			params: Params{{Key: "q s", Value: "a&b=c"}},
			exp:    "http://h/u?q+s=a%26b%3Dc",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := BuildURL(tc.base, tc.path, tc.params)
			if got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}
		})
	}
}

func TestParams_NilPointerSkipped(t *testing.T) {
	var s *string
	v := "set"

	got := Params{}.Add("a", s).Add("b", &v).encode()
	if got != "b=set" {
		t.Errorf("exp %q, got %q", "b=set", got)
	}
}

func TestMapParams_SortedByKey(t *testing.T) {
	got := mapParams(map[string]any{"z": 1, "a": 2, "m": 3})

	exp := Params{{Key: "a", Value: 2}, {Key: "m", Value: 3}, {Key: "z", Value: 1}}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("params mismatch (-exp +got):\n%s", diff)
	}
}

func TestJSONParams(t *testing.T) {
	testCases := map[string]struct {
		raw   string
		exp   string
		expOK bool
	}{
		"documentOrder": {
			raw:   `{"zeta":1,"alpha":"two","mid":true}`,
			exp:   "zeta=1&alpha=two&mid=true",
			expOK: true,
		},
		"nullSkipped": {
			raw:   `{"a":null,"b":"x"}`,
			exp:   "b=x",
			expOK: true,
		},
		"nestedAsJSON": {
			raw:   `{"f":{"k":1}}`,
			exp:   "f=%7B%22k%22%3A1%7D",
			expOK: true,
		},
		"notAnObject": {
			raw: `[1,2]`,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			params, ok := jsonParams([]byte(tc.raw))
			if ok != tc.expOK {
				t.Fatalf("exp ok %t, got %t", tc.expOK, ok)
			}
			if got := params.encode(); got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}
		})
	}
}
