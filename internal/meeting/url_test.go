package meeting

import (
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"C_007", "C-007"},
		{"Dr. Alice", "Dr-Alice"},
		{"sara", "sara"},
		{"a__b--c", "a-b-c"},
		{"  padded  ", "padded"},
		{"__lead_trail__", "lead-trail"},
		{"", ""},
		{"***", ""},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	day := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	got := BuildURL("jit.si", "carebridge", "C_007", "Sara", day)
	want := "https://meet.jit.si/carebridge-C-007-Sara-14032025"
	if got != want {
		t.Fatalf("BuildURL = %q, want %q", got, want)
	}

	// Time of day does not matter; the calendar date does.
	later := day.Add(5 * time.Hour)
	if again := BuildURL("jit.si", "carebridge", "C_007", "Sara", later); again != want {
		t.Fatalf("same-day url differs: %q", again)
	}
	next := day.AddDate(0, 0, 1)
	if tomorrow := BuildURL("jit.si", "carebridge", "C_007", "Sara", next); tomorrow == want {
		t.Fatal("next-day url did not change")
	}
}

func TestDialURI(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+49 170 1234567", "tel:+491701234567"},
		{"(030) 555-0000", "tel:0305550000"},
		{"170+1234", "tel:1701234"},
		{"", "tel:"},
	}
	for _, tc := range cases {
		if got := DialURI(tc.in); got != tc.want {
			t.Errorf("DialURI(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
