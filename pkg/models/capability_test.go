package models

import "testing"

func TestCapabilityKind_Valid(t *testing.T) {
	valid := []CapabilityKind{
		CapabilityExplore,
		CapabilityImplement,
		CapabilityTest,
		CapabilityReview,
		CapabilityRefactor,
	}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}

	for _, k := range []CapabilityKind{"deploy", "", "Implement"} {
		if k.Valid() {
			t.Errorf("%q should be invalid", k)
		}
	}
}
