package chronos

import (
	"strings"
	"testing"
)

func TestComputeFactID(t *testing.T) {
	earth, canon := NewEntityID(), NewEntityID()

	a := ComputeFactID(earth, canon, "name", 0)
	if b := ComputeFactID(earth, canon, "name", 0); a != b {
		t.Errorf("ComputeFactID is not deterministic: %v != %v", a, b)
	}

	others := map[string]FactID{
		"entity":    ComputeFactID(NewEntityID(), canon, "name", 0),
		"spacetime": ComputeFactID(earth, NewEntityID(), "name", 0),
		"attribute": ComputeFactID(earth, canon, "names", 0),
		"validFrom": ComputeFactID(earth, canon, "name", 1),
	}
	for field, other := range others {
		if other == a {
			t.Errorf("ComputeFactID ignores the %v of the fact", field)
		}
	}

	// The attribute is length-prefixed, so the bytes of the tick cannot be
	// mistaken for the tail of the attribute.
	if ComputeFactID(earth, canon, "a", 0x6200000000000000) == ComputeFactID(earth, canon, "ab", 0) {
		t.Errorf("ComputeFactID confuses attribute and tick boundaries")
	}
}

func TestFactIDText(t *testing.T) {
	id := ComputeFactID(NewEntityID(), NewEntityID(), "population", 50)
	text, err := id.MarshalText()
	if err != nil {
		t.Fatal("MarshalText failed:", err)
	}
	if len(text) != 40 {
		t.Errorf("MarshalText() = %q, want 40 hex digits", text)
	}
	var got FactID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatal("UnmarshalText failed:", err)
	}
	if got != id {
		t.Errorf("UnmarshalText(%q) = %v, want %v", text, got, id)
	}
	if !strings.HasPrefix(id.String(), "fact(") {
		t.Errorf("String() = %q, want fact(...)", id.String())
	}

	for _, bad := range []string{"", "abc", string(text[:38]), string(text) + "00", strings.Repeat("zz", 20)} {
		var x FactID
		if err := x.UnmarshalText([]byte(bad)); err == nil {
			t.Errorf("UnmarshalText(%q) succeeded, want error", bad)
		}
	}
}

func TestEntityIDText(t *testing.T) {
	id := NewEntityID()
	parsed, err := ParseEntityID(id.String())
	if err != nil || parsed != id {
		t.Errorf("ParseEntityID(%q) = (%v, %v), want %v", id.String(), parsed, err, id)
	}
	if _, err := ParseEntityID("earth"); err == nil {
		t.Errorf("ParseEntityID(earth) succeeded, want error")
	}
	if !(EntityID{}).IsZero() || id.IsZero() {
		t.Errorf("IsZero() reports wrongly")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("MustParseEntityID(earth) did not panic")
		}
	}()
	MustParseEntityID("earth")
}
