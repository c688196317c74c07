package adapter

import (
	"testing"

	"github.com/dontbug-kt/ktdbg/internal/proto"
)

func TestThreadIDsStableAndReversible(t *testing.T) {
	ids := newThreadIDs()

	a := ids.id(proto.ThreadID("t1"))
	b := ids.id(proto.ThreadID("t2"))
	if a == b {
		t.Fatalf("distinct native threads got the same DAP id: %d", a)
	}
	if again := ids.id(proto.ThreadID("t1")); again != a {
		t.Fatalf("id(t1) not stable: got %d, want %d", again, a)
	}

	native, ok := ids.native(a)
	if !ok || native != "t1" {
		t.Fatalf("native(%d) = %q, %v; want \"t1\", true", a, native, ok)
	}

	if _, ok := ids.native(9999); ok {
		t.Fatalf("native(9999) should be unknown")
	}
}

func TestScopeRefRoundTrip(t *testing.T) {
	for _, frame := range []int{0, 1, 7, 42} {
		ref := scopeRef(frame)
		if !isScopeRef(ref) {
			t.Fatalf("scopeRef(%d) = %d not recognized by isScopeRef", frame, ref)
		}
		if got := frameIndexFromScopeRef(ref); got != frame {
			t.Fatalf("frameIndexFromScopeRef(scopeRef(%d)) = %d", frame, got)
		}
	}

	// A registry-issued reference (well under scopeRefBase) must never be
	// mistaken for a scope reference.
	if isScopeRef(1000) {
		t.Fatalf("variable reference 1000 misclassified as a scope reference")
	}
}
