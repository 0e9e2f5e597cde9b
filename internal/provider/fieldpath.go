package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// Field paths address values inside decoded JSON documents:
// "id", "input.image", "output[0]", "data.outputs[1].url".

type pathSegment struct {
	key   string
	index int // -1 when the segment has no [n] suffix
}

func parsePath(path string) ([]pathSegment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty field path")
	}

	var segments []pathSegment
	for _, part := range strings.Split(path, ".") {
		seg := pathSegment{key: part, index: -1}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("field path %q: unterminated index", path)
			}
			n, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("field path %q: invalid index", path)
			}
			seg.key = part[:open]
			seg.index = n
		}
		if seg.key == "" && seg.index < 0 {
			return nil, fmt.Errorf("field path %q: empty segment", path)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// lookupPath resolves path in doc. The bool is false when any segment is
// missing, has the wrong type, or resolves to JSON null.
func lookupPath(doc any, path string) (any, bool) {
	segments, err := parsePath(path)
	if err != nil {
		return nil, false
	}

	cur := doc
	for _, seg := range segments {
		if seg.key != "" {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = obj[seg.key]; !ok {
				return nil, false
			}
		}
		if seg.index >= 0 {
			arr, ok := cur.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
		}
	}

	if cur == nil {
		return nil, false
	}
	return cur, true
}

// lookupString resolves path and returns a non-empty string value.
// Numbers are formatted so numeric ids survive.
func lookupString(doc any, path string) (string, bool) {
	v, ok := lookupPath(doc, path)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// assignPath sets value at path inside obj, creating intermediate objects.
// Index segments are not supported when building requests.
func assignPath(obj map[string]any, path string, value any) error {
	segments, err := parsePath(path)
	if err != nil {
		return err
	}

	cur := obj
	for i, seg := range segments {
		if seg.index >= 0 {
			return fmt.Errorf("field path %q: index segments cannot be assigned", path)
		}
		if i == len(segments)-1 {
			cur[seg.key] = value
			return nil
		}
		next, ok := cur[seg.key].(map[string]any)
		if !ok {
			if _, exists := cur[seg.key]; exists {
				return fmt.Errorf("field path %q: %q is not an object", path, seg.key)
			}
			next = make(map[string]any)
			cur[seg.key] = next
		}
		cur = next
	}
	return nil
}

// deepCopy clones JSON-like values so static request fields are never shared
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
