package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Params are the query parameters a cache key is derived from. Values are
// scalars or slices of scalars.
type Params map[string]any

// ArraySeparator joins the sorted elements of slice parameters.
const ArraySeparator = ","

// GenerateKey builds a deterministic key from prefix and params.
//
// Nil values, nil pointers, empty strings and empty slices are dropped. Slice
// values are sorted and joined with ArraySeparator. The remaining parameters
// are encoded as a JSON object, whose keys encoding/json always emits in sorted
// order, and appended to the prefix after a colon.
func GenerateKey(prefix string, params Params) string {
	cleaned := make(map[string]any, len(params))
	for name, raw := range params {
		if v, ok := normalizeParam(raw); ok {
			cleaned[name] = v
		}
	}
	b, err := json.Marshal(cleaned)
	if err != nil {
		return prefix + ":" + fmt.Sprint(cleaned)
	}
	return prefix + ":" + string(b)
}

func normalizeParam(raw any) (any, bool) {
	if raw == nil {
		return nil, false
	}
	v := reflect.ValueOf(raw)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return nil, false
		}
		return v.String(), true
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			if v.Len() == 0 {
				return nil, false
			}
			return string(v.Bytes()), true
		}
		if v.Len() == 0 {
			return nil, false
		}
		parts := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts = append(parts, fmt.Sprint(v.Index(i).Interface()))
		}
		sort.Strings(parts)
		return strings.Join(parts, ArraySeparator), true
	default:
		return v.Interface(), true
	}
}
