package landmarks

import "testing"

func TestForLocality_SeededCity(t *testing.T) {
	got := ForLocality("Pune")
	if len(got) != 3 {
		t.Fatalf("expected 3 landmarks, got %d", len(got))
	}

	want := []string{"Shaniwar Wada", "Aga Khan Palace", "Sinhagad Fort"}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("landmark %d: expected %q, got %q", i, name, got[i].Name)
		}
		if got[i].Distance == "" || got[i].Rating == nil || got[i].RatingCount == nil {
			t.Errorf("landmark %q must ship with display fields", got[i].Name)
		}
		if !got[i].Location.Valid() {
			t.Errorf("landmark %q has an invalid coordinate", got[i].Name)
		}
	}
}

func TestForLocality_UnknownCity(t *testing.T) {
	if got := ForLocality("Atlantis"); got != nil {
		t.Errorf("expected nil for an unseeded city, got %v", got)
	}
}

func TestForLocality_ReturnsCopy(t *testing.T) {
	first := ForLocality("Pune")
	first[0].Name = "mutated"

	second := ForLocality("Pune")
	if second[0].Name != "Shaniwar Wada" {
		t.Error("callers must not be able to mutate the table")
	}
}
