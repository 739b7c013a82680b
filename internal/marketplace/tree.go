package marketplace

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// maxTreeDepth bounds the search for a node in embedded JSON
const maxTreeDepth = 256

type frame struct {
	value any
	depth int
}

// findNode walks tree depth-first and returns the first non-null value
// stored under key. Object keys are visited in sorted order so the result
// does not depend on map iteration. Containers deeper than maxTreeDepth,
// or already visited, are skipped.
func findNode(tree any, key string) any {
	visited := make(map[uintptr]struct{})
	stack := []frame{{value: tree}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.depth > maxTreeDepth {
			continue
		}

		switch v := top.value.(type) {
		case map[string]any:
			if seen(visited, v) {
				continue
			}
			if found, ok := v[key]; ok && found != nil {
				return found
			}

			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, frame{value: v[keys[i]], depth: top.depth + 1})
			}
		case []any:
			if len(v) == 0 || seen(visited, v) {
				continue
			}
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, frame{value: v[i], depth: top.depth + 1})
			}
		}
	}

	return nil
}

func seen(visited map[uintptr]struct{}, container any) bool {
	ptr := reflect.ValueOf(container).Pointer()
	if _, ok := visited[ptr]; ok {
		return true
	}
	visited[ptr] = struct{}{}
	return false
}

var errTrailingData = errors.New("unexpected data after top-level JSON value")

// decodeTree parses a single JSON document keeping numbers as json.Number so
// large listing ids survive intact. Anything but whitespace after the value
// is an error.
func decodeTree(data string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return tree, nil
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

// getString returns strings as-is and numbers in their decimal form
func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// truthy mirrors how the source serializes flags: true, non-zero or non-empty
func truthy(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case float64:
		return v != 0
	case nil:
		return false
	}
	return true
}

// getAmount parses a price amount given as a string or number
func getAmount(m map[string]any, key string) *float64 {
	s := getString(m, key)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
