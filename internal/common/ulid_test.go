package common

import "testing"

func TestNewULID_SortableAndUnique(t *testing.T) {
	prev := ""
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewULID()
		if err != nil {
			t.Fatalf("new ulid: %v", err)
		}
		if len(id) != 26 {
			t.Fatalf("unexpected length %d", len(id))
		}
		if seen[id] || id <= prev {
			t.Fatalf("ids not unique/monotonic: %s after %s", id, prev)
		}
		seen[id] = true
		prev = id
	}
}
