package canon

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// splitPointer decomposes a JSON-Pointer-style path into unescaped tokens.
// "" (root) yields an empty token slice.
func splitPointer(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("canon: path %q must start with /", path)
	}
	raw := strings.Split(path[1:], "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		t = strings.ReplaceAll(t, "~1", "/")
		t = strings.ReplaceAll(t, "~0", "~")
		tokens[i] = t
	}
	return tokens, nil
}

// getAt returns the value addressed by tokens within root, without mutation.
func getAt(root interface{}, tokens []string) (interface{}, error) {
	if len(tokens) == 0 {
		return root, nil
	}
	tok, rest := tokens[0], tokens[1:]
	switch v := root.(type) {
	case map[string]interface{}:
		child, ok := v[tok]
		if !ok {
			return nil, fmt.Errorf("canon: path segment %q not found", tok)
		}
		return getAt(child, rest)
	case []interface{}:
		idx, err := arrayIndex(tok, len(v), false)
		if err != nil {
			return nil, err
		}
		return getAt(v[idx], rest)
	default:
		return nil, fmt.Errorf("canon: cannot descend into scalar at %q", tok)
	}
}

// arrayIndex parses a JSON-Pointer array token. allowAppend permits "-" to
// mean one-past-the-end, used for add.
func arrayIndex(tok string, length int, allowAppend bool) (int, error) {
	if tok == "-" {
		if allowAppend {
			return length, nil
		}
		return 0, fmt.Errorf("canon: '-' is only valid for add")
	}
	idx, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("canon: invalid array index %q", tok)
	}
	if idx < 0 || idx > length || (!allowAppend && idx >= length) {
		return 0, fmt.Errorf("canon: array index %d out of range (len %d)", idx, length)
	}
	return idx, nil
}

// cloneShallow copies one level of a map or slice so a mutation at this
// level never aliases the original document — the copy-on-write unit.
func cloneShallow(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		cp := make(map[string]interface{}, len(t))
		for k, val := range t {
			cp[k] = val
		}
		return cp
	case []interface{}:
		cp := make([]interface{}, len(t))
		copy(cp, t)
		return cp
	default:
		return v
	}
}

// setAt returns a new tree equal to root except that the location addressed
// by tokens holds value. isAdd permits growing an array ("-" or new object
// key); otherwise the target must already exist (replace semantics).
func setAt(root interface{}, tokens []string, value interface{}, isAdd bool) (interface{}, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("canon: cannot replace document root via patch op")
	}
	container := cloneShallow(root)
	tok := tokens[0]
	rest := tokens[1:]

	switch v := container.(type) {
	case map[string]interface{}:
		if len(rest) == 0 {
			if !isAdd {
				if _, ok := v[tok]; !ok {
					return nil, fmt.Errorf("canon: replace target %q does not exist", tok)
				}
			}
			v[tok] = value
			return v, nil
		}
		child, ok := v[tok]
		if !ok {
			return nil, fmt.Errorf("canon: path segment %q not found", tok)
		}
		newChild, err := setAt(child, rest, value, isAdd)
		if err != nil {
			return nil, err
		}
		v[tok] = newChild
		return v, nil
	case []interface{}:
		idx, err := arrayIndex(tok, len(v), isAdd && len(rest) == 0)
		if err != nil {
			return nil, err
		}
		if len(rest) == 0 {
			if isAdd {
				v = append(v, nil)
				copy(v[idx+1:], v[idx:])
				v[idx] = value
				return v, nil
			}
			v[idx] = value
			return v, nil
		}
		newChild, err := setAt(v[idx], rest, value, isAdd)
		if err != nil {
			return nil, err
		}
		v[idx] = newChild
		return v, nil
	default:
		return nil, fmt.Errorf("canon: cannot descend into scalar at %q", tok)
	}
}

// removeAt returns a new tree with the location addressed by tokens removed,
// and the removed value.
func removeAt(root interface{}, tokens []string) (interface{}, interface{}, error) {
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("canon: cannot remove document root")
	}
	container := cloneShallow(root)
	tok := tokens[0]
	rest := tokens[1:]

	switch v := container.(type) {
	case map[string]interface{}:
		if len(rest) == 0 {
			val, ok := v[tok]
			if !ok {
				return nil, nil, fmt.Errorf("canon: remove target %q does not exist", tok)
			}
			delete(v, tok)
			return v, val, nil
		}
		child, ok := v[tok]
		if !ok {
			return nil, nil, fmt.Errorf("canon: path segment %q not found", tok)
		}
		newChild, removed, err := removeAt(child, rest)
		if err != nil {
			return nil, nil, err
		}
		v[tok] = newChild
		return v, removed, nil
	case []interface{}:
		idx, err := arrayIndex(tok, len(v), false)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) == 0 {
			removed := v[idx]
			v = append(v[:idx], v[idx+1:]...)
			return v, removed, nil
		}
		newChild, removed, err := removeAt(v[idx], rest)
		if err != nil {
			return nil, nil, err
		}
		v[idx] = newChild
		return v, removed, nil
	default:
		return nil, nil, fmt.Errorf("canon: cannot remove from scalar at %q", tok)
	}
}

// deepEqual mirrors RFC-6902 `test`: structural equality over the generic
// JSON tree (maps, slices, and JSON scalar types).
func deepEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}
