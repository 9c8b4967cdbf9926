package fingerprint

import (
	"testing"
	"time"
)

func TestReport_Deterministic(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	a := Report("acme", "left-pad", at, 42)
	b := Report("acme", "left-pad", at, 42)
	if a != b {
		t.Errorf("two constructions over the same triple differ: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}
}

func TestReport_CaseAndWhitespaceInsensitiveIdentity(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	a := Report("Acme", "Left-Pad", at, 42)
	b := Report(" acme ", "left-pad", at, 42)
	if a != b {
		t.Errorf("identity normalization not applied")
	}
}

func TestReport_SensitiveToEachInput(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	base := Report("acme", "left-pad", at, 42)

	tests := []struct {
		name string
		got  string
	}{
		{"owner", Report("other", "left-pad", at, 42)},
		{"name", Report("acme", "right-pad", at, 42)},
		{"time", Report("acme", "left-pad", at.Add(time.Second), 42)},
		{"score", Report("acme", "left-pad", at, 43)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == base {
				t.Errorf("changing %s did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestReport_TimezoneNormalized(t *testing.T) {
	utc := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*3600))

	if Report("acme", "left-pad", utc, 10) != Report("acme", "left-pad", est, 10) {
		t.Errorf("equivalent instants in different zones produce different fingerprints")
	}
}

func TestHash(t *testing.T) {
	// sha256("") is a well-known constant.
	if got := Hash(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Hash(\"\") = %s", got)
	}
}
