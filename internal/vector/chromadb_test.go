package vector

import (
	"strings"
	"testing"
)

func TestJobCollectionNameStableAndDistinct(t *testing.T) {
	a := JobCollectionName("job-123")
	b := JobCollectionName("job-123")
	c := JobCollectionName("job-456")
	if a != b {
		t.Fatalf("collection name not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("distinct jobs mapped to the same collection %q", a)
	}
	if !strings.HasPrefix(a, "job_") {
		t.Fatalf("unexpected collection prefix %q", a)
	}
}

func TestJobCollectionNameDistinguishesLongIDs(t *testing.T) {
	// Owner-assigned ids can be long and differ only near the end; the
	// collection name must still separate them.
	prefix := strings.Repeat("course-unit-", 5)
	a := JobCollectionName(prefix + "a")
	b := JobCollectionName(prefix + "b")
	if a == b {
		t.Fatalf("jobs sharing a long prefix mapped to the same collection %q", a)
	}
	upper := JobCollectionName(strings.ToUpper(prefix) + "a")
	if a == upper {
		t.Fatalf("case-variant job ids mapped to the same collection %q", a)
	}
}

func TestJobCollectionNameIsValid(t *testing.T) {
	name := JobCollectionName("  any job id, even with spaces & symbols  ")
	if len(name) < 3 || len(name) > 63 {
		t.Fatalf("collection name length %d outside chromadb limits: %q", len(name), name)
	}
	for _, r := range name {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !valid {
			t.Fatalf("collection name %q contains invalid rune %q", name, r)
		}
	}
}
