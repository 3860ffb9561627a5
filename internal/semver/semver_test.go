package semver

import "testing"

// TestCompatibleStrings covers spec.md §8 property 9's four cases exactly.
func TestCompatibleStrings(t *testing.T) {
	cases := []struct {
		required, actual string
		want             bool
	}{
		{"0.6.0", "0.6.3", true},
		{"0.6.0", "0.5.9", false},
		{"0.6.0", "1.0.0", false},
		{"0.6.0", "0.7.0", true},
	}
	for _, c := range cases {
		if got := CompatibleStrings(c.required, c.actual); got != c.want {
			t.Errorf("CompatibleStrings(%q, %q) = %v, want %v", c.required, c.actual, got, c.want)
		}
	}
}

func TestCompatibleStringsMalformed(t *testing.T) {
	if CompatibleStrings("not-a-version", "0.6.0") {
		t.Fatal("expected malformed required version to be incompatible")
	}
	if CompatibleStrings("0.6.0", "garbage") {
		t.Fatal("expected malformed actual version to be incompatible")
	}
}
