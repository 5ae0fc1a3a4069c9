package memory

import (
	"sort"
	"testing"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

func TestTokenSet(t *testing.T) {
	s := NewTokenSet()

	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}

	s.Add("gt-a")
	s.Add("gt-b")
	s.Add("gt-a") // duplicate
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if !s.Contains("gt-a") || !s.Contains("gt-b") {
		t.Fatalf("missing members")
	}

	s.Remove("gt-a")
	if s.Contains("gt-a") {
		t.Fatalf("gt-a still present after Remove")
	}

	items := s.Items()
	if len(items) != 1 || items[0] != "gt-b" {
		t.Fatalf("Items = %v", items)
	}
}

func TestClassIndex(t *testing.T) {
	idx := NewClassIndex()

	idx.Add(domain.ClassAnchor, "gt-a")
	idx.Add(domain.ClassAnchor, "gt-b")
	idx.Add(domain.ClassWarning, "gt-c")

	if got := idx.Count(domain.ClassAnchor); got != 2 {
		t.Fatalf("Count(anchor) = %d, want 2", got)
	}
	if got := idx.Count(domain.ClassAudit); got != 0 {
		t.Fatalf("Count(audit) = %d, want 0", got)
	}

	ids := idx.Get(domain.ClassAnchor)
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "gt-a" || ids[1] != "gt-b" {
		t.Fatalf("Get(anchor) = %v", ids)
	}

	counts := idx.Counts()
	if counts[domain.ClassAnchor] != 2 || counts[domain.ClassWarning] != 1 {
		t.Fatalf("Counts = %v", counts)
	}

	// Removing the last member drops the class bucket entirely.
	idx.Remove(domain.ClassWarning, "gt-c")
	if _, ok := idx.Counts()[domain.ClassWarning]; ok {
		t.Fatalf("warning bucket should be gone")
	}

	// Removing from an absent class is a no-op.
	idx.Remove(domain.ClassConsent, "gt-x")
}
