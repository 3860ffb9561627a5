package amount

import "testing"

// TestFormat covers spec.md §8 property 8 exactly.
func TestFormat(t *testing.T) {
	cases := map[string]string{
		"1234567": "1 234 567",
		"12":      "12",
		"":        "",
		"123":     "123",
		"1234":    "1 234",
		"-1234":   "-1 234",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Errorf("Format(%q) = %q, want %q", in, got, want)
		}
	}
}
