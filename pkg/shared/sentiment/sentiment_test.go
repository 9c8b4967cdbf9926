package sentiment

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Sentiment
	}{
		{"warning only", "Critical vulnerability discovered in popular package", Warning},
		{"both lists", "Vulnerability in leftpad has been patched in 1.3.1", Negative},
		{"positive only", "Widely trusted and well maintained library", Positive},
		{"neither", "Release 2.0 adds streaming support", Neutral},
		{"case insensitive", "BACKDOOR found in build pipeline", Warning},
		{"empty", "", Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsAdverse(t *testing.T) {
	if !Warning.IsAdverse() || !Negative.IsAdverse() {
		t.Error("warning/negative should be adverse")
	}
	if Positive.IsAdverse() || Neutral.IsAdverse() {
		t.Error("positive/neutral should not be adverse")
	}
}
