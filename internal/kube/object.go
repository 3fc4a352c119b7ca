package kube

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Object is a loosely typed Kubernetes object as printed by kubectl -o json.
type Object map[string]any

// GetJSON runs kubectl with -o json and decodes a single object.
func (c *Client) GetJSON(ctx context.Context, args ...string) (Object, error) {
	out, err := c.RunAndCapture(ctx, nil, append(args, "-o", "json")...)
	if err != nil {
		return nil, err
	}
	return DecodeObject(out)
}

// DecodeObject decodes one JSON object.
func DecodeObject(data []byte) (Object, error) {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode kubectl output: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode kubectl output: empty document")
	}
	return obj, nil
}

// Items returns the entries of a List object.
func (o Object) Items() []Object {
	return o.Slice("items")
}

// Map returns the nested object at path, or nil when any segment is missing
// or not an object.
func (o Object) Map(path ...string) Object {
	cur := o
	for _, key := range path {
		if cur == nil {
			return nil
		}
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// String returns the string at path or "".
func (o Object) String(path ...string) string {
	v, _ := o.value(path).(string)
	return v
}

// Slice returns the list of objects at path; non-object entries are skipped.
func (o Object) Slice(path ...string) []Object {
	raw, ok := o.value(path).([]any)
	if !ok {
		return nil
	}
	out := make([]Object, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Time parses the RFC3339 timestamp at path. It reports ok=false when the
// field is present but malformed; a missing field yields (nil, true).
func (o Object) Time(path ...string) (t *time.Time, ok bool) {
	raw := strings.TrimSpace(o.String(path...))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

func (o Object) value(path []string) any {
	if len(path) == 0 {
		return nil
	}
	parent := o.Map(path[:len(path)-1]...)
	if parent == nil {
		return nil
	}
	return parent[path[len(path)-1]]
}
