package mapping

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"## 3. Reference Documents", "reference documents"},
		{"Safety & Security Requirements", "safety security requirements"},
		{"  Spaced   Out  ", "spaced out"},
		{"UPPER case", "upper case"},
		{"123456", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "reference documents", "reference documents", 100},
		{"both empty", "", "", 100},
		{"one empty", "introduction", "", 0},
		// (38-2)/38*100 = 94.74, rounded up.
		{"single typo", "referense documents", "reference documents", 95},
		// (33-5)/33*100 = 84.85, rounded up.
		{"abbreviation", "reference docs", "reference documents", 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Ratio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got != Ratio(tt.b, tt.a) {
				t.Errorf("Ratio is not symmetric for %q, %q", tt.a, tt.b)
			}
		})
	}
}

func TestRatioUnrelated(t *testing.T) {
	// Unrelated phrases stay safely below any sensible threshold.
	if r := Ratio("appendix z unrelated notes", "timing requirements"); r >= 60 {
		t.Errorf("unrelated ratio = %d, want < 60", r)
	}
}

func TestRatioBounds(t *testing.T) {
	pairs := [][2]string{
		{"", "anything at all"},
		{"a", "b"},
		{"hardware requirements", "software requirements"},
		{"x", "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"},
	}
	for _, p := range pairs {
		r := Ratio(p[0], p[1])
		if r < 0 || r > 100 {
			t.Errorf("Ratio(%q, %q) = %d, out of [0,100]", p[0], p[1], r)
		}
	}
}
