package client

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Param is one query parameter. A nil Value is skipped.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered set of query parameters. Keys are encoded in slice
// order.
type Params []Param

// Add appends a parameter and returns the extended set.
func (p Params) Add(key string, value any) Params {
	return append(p, Param{Key: key, Value: value})
}

// encode serializes p as application/x-www-form-urlencoded, skipping nil
// values.
func (p Params) encode() string {
	var b strings.Builder
	for _, param := range p {
		s, ok := stringify(param.Value)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(param.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(s))
	}
	return b.String()
}

func stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case gjson.Result:
		if !val.Exists() || val.Type == gjson.Null {
			return "", false
		}
		if val.Type == gjson.String {
			return val.Str, true
		}
		return val.Raw, true
	case fmt.Stringer:
		if isNilPointer(v) {
			return "", false
		}
		return val.String(), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		return stringify(rv.Elem().Interface())
	}

	return fmt.Sprint(v), true
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// mapParams orders m lexically by key.
func mapParams(m map[string]any) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	params := make(Params, 0, len(keys))
	for _, k := range keys {
		params = append(params, Param{Key: k, Value: m[k]})
	}
	return params
}

// jsonParams converts the members of a JSON object into Params in
// document order. It returns false when raw is not an object.
func jsonParams(raw []byte) (Params, bool) {
	obj := gjson.ParseBytes(raw)
	if !obj.IsObject() {
		return nil, false
	}

	var params Params
	obj.ForEach(func(key, value gjson.Result) bool {
		params = append(params, Param{Key: key.String(), Value: value})
		return true
	})

	return params, true
}

// BuildURL resolves path against base and appends params. Absolute http(s)
// paths ignore base. Exactly one "/" separates base and path.
func BuildURL(base, path string, params Params) string {
	full := joinURL(base, path)
	return appendParams(full, params)
}

func joinURL(base, path string) string {
	if isAbsoluteURL(path) || base == "" {
		return path
	}

	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return base + path
}

func isAbsoluteURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func appendParams(full string, params Params) string {
	query := params.encode()
	if query == "" {
		return full
	}

	sep := "?"
	if strings.Contains(full, "?") {
		sep = "&"
	}

	return full + sep + query
}

// bodyless reports whether method never carries a request body. JSON
// payloads for these methods are folded into the query string.
func bodyless(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
