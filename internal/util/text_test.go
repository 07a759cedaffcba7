package util

import (
	"reflect"
	"testing"
)

func TestNormalizeSKU(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"tn-730", "TN730"},
		{"TN 730", "TN730"},
		{"  n9j90an ", "N9J90AN"},
		{"CF258X", "CF258X"},
	}
	for _, tc := range cases {
		if got := NormalizeSKU(tc.in); got != tc.want {
			t.Errorf("NormalizeSKU(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVendorPrefixStrips(t *testing.T) {
	// Letter-leading part numbers are ambiguous: stripping "M-" alone
	// must stay a candidate alongside the longer strips.
	got := VendorPrefixStrips("M-TN730")
	want := []string{"TN730", "N730", "730"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}

	got = VendorPrefixStrips("m-cf258x")
	want = []string{"CF258X", "F258X", "258X"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}

	// Digit-leading rest: only the bare "M-" strip applies.
	got = VendorPrefixStrips("M-730")
	want = []string{"730"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}

	if got := VendorPrefixStrips("TN730"); got != nil {
		t.Errorf("unprefixed sku produced strips: %v", got)
	}
}

func TestLooksLikeSKU(t *testing.T) {
	if !LooksLikeSKU("TN730") {
		t.Error("TN730 should look like a SKU")
	}
	if LooksLikeSKU("HP 64 Black Ink Cartridge") {
		t.Error("long description should not look like a SKU")
	}
	if LooksLikeSKU("12") {
		t.Error("bare digits should not look like a SKU")
	}
}

func TestFamilySeries(t *testing.T) {
	a := FamilySeries("Brother", "TN730")
	b := FamilySeries("Brother", "TN760")
	if a != b {
		t.Errorf("variants should share a family: %q vs %q", a, b)
	}
	if a != "BROTHER TN" {
		t.Errorf("got %q", a)
	}
}

func TestDiceCoefficient(t *testing.T) {
	if got := DiceCoefficient("TONER", "TONER"); got != 1 {
		t.Errorf("identical strings: %v", got)
	}
	if got := DiceCoefficient("", "TONER"); got != 0 {
		t.Errorf("empty string: %v", got)
	}
	close := DiceCoefficient("HP 64 BLACK INK", "HP 64 BLACK INK CARTRIDGE")
	far := DiceCoefficient("HP 64 BLACK INK", "BROTHER TN730 TONER")
	if close <= far {
		t.Errorf("close=%v should exceed far=%v", close, far)
	}
}
