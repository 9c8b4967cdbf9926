package severity

import "testing"

func TestLevel_Priority(t *testing.T) {
	tests := []struct {
		level    Level
		expected int
	}{
		{Critical, 4},
		{High, 3},
		{Medium, 2},
		{Low, 1},
		{Unknown, 0},
		{Level("invalid"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.Priority(); got != tt.expected {
				t.Errorf("Level.Priority() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"CRITICAL", Critical},
		{"critical", Critical},
		{"HIGH", High},
		{"MODERATE", Medium},
		{"MEDIUM", Medium},
		{"LOW", Low},
		{"NONE", Low},
		{"  high  ", High},
		{"garbage", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FromString(tt.input); got != tt.expected {
				t.Errorf("FromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFromCVSS(t *testing.T) {
	tests := []struct {
		score    float64
		expected Level
	}{
		{10.0, Critical},
		{9.0, Critical},
		{8.9, High},
		{7.0, High},
		{6.9, Medium},
		{4.0, Medium},
		{3.9, Low},
		{0.0, Low},
		{-1.0, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			if got := FromCVSS(tt.score); got != tt.expected {
				t.Errorf("FromCVSS(%v) = %v, want %v", tt.score, got, tt.expected)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Level
		expected int
	}{
		{"critical vs high", Critical, High, 1},
		{"low vs medium", Low, Medium, -1},
		{"equal", High, High, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.expected {
				t.Errorf("Compare(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	var c Counts
	for _, l := range []Level{Critical, High, High, Medium, Low, Level("weird")} {
		c.Increment(l)
	}

	if c.Total != 6 {
		t.Errorf("Total = %d, want 6", c.Total)
	}
	if c.Critical != 1 || c.High != 2 || c.Medium != 1 || c.Low != 1 || c.Unknown != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if got := c.Highest(); got != Critical {
		t.Errorf("Highest() = %v, want critical", got)
	}

	empty := &Counts{}
	if got := empty.Highest(); got != Unknown {
		t.Errorf("Highest() on empty = %v, want unknown", got)
	}
}
