package jsonpath

import (
	"strconv"
	"strings"
)

// resolve walks a decoded JSON tree along a dot-notation path with
// optional bracket array access: "address.city", "tags[0]", "a[1].b".
// A numeric segment applied to an array is treated as an index.
func resolve(root any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	current := root
	for _, token := range strings.Split(path, ".") {
		if token == "" {
			return nil, false
		}

		key, indices, ok := splitBrackets(token)
		if !ok {
			return nil, false
		}

		if key != "" {
			next, ok := step(current, key)
			if !ok {
				return nil, false
			}
			current = next
		}

		for _, idx := range indices {
			arr, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}
	return current, true
}

// step applies one plain segment: an object key, or a numeric index
// when the current node is an array.
func step(current any, token string) (any, bool) {
	switch node := current.(type) {
	case map[string]any:
		v, ok := node[token]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(token)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}
		return node[idx], true
	default:
		return nil, false
	}
}

// splitBrackets splits "key[0][1]" into "key" and [0, 1]. A token
// without brackets returns itself and no indices.
func splitBrackets(token string) (key string, indices []int, ok bool) {
	open := strings.IndexByte(token, '[')
	if open == -1 {
		return token, nil, true
	}

	key = token[:open]
	rest := token[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil || idx < 0 {
			return "", nil, false
		}
		indices = append(indices, idx)
		rest = rest[end+1:]
	}
	return key, indices, true
}
