// Package audit computes field-level diffs between entity snapshots and keeps
// the append-only audit trail.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Change is one differing key between two snapshots.
type Change struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// Diff compares two snapshots key by key. Values are compared by their JSON
// encoding. A nil before (creation) yields every key of after with a nil
// OldValue. Changes are sorted by field name.
func Diff(before, after map[string]any) []Change {
	keys := make([]string, 0, len(before)+len(after))
	seen := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range after {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	changes := []Change{}
	for _, k := range keys {
		oldValue, hadOld := before[k]
		newValue, hasNew := after[k]
		if hadOld && hasNew && sameJSON(oldValue, newValue) {
			continue
		}
		if !hadOld && !hasNew {
			continue
		}
		changes = append(changes, Change{Field: k, OldValue: oldValue, NewValue: newValue})
	}
	return changes
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	return bytes.Equal(ja, jb)
}

// Snapshot converts a value into the generic map form stored in the audit
// trail, using the value's JSON field names. A nil value yields nil.
func Snapshot(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("audit snapshot: %w", err)
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("audit snapshot: %w", err)
	}
	return out, nil
}
