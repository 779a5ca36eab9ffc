package money

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input    string
		expected int64 // cents
	}{
		{"1234.56", 123456},
		{"R$ 1.234,56", 123456},
		{"R$1.234,56", 123456},
		{"46,51", 4651},
		{"R$ 46,51", 4651},
		{"1000", 100000},
		{"0,00", 0},
		{"-12,34", -1234},
		{"-12.34", -1234},
	}

	for _, tc := range cases {
		a, err := Parse(tc.input)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tc.input, err)
			continue
		}
		if a.Cents() != tc.expected {
			t.Errorf("Parse(%q): expected %d cents, got %d", tc.input, tc.expected, a.Cents())
		}
	}

	if _, err := Parse("abc"); err == nil {
		t.Error("Expected error for non-numeric input")
	}
	if _, err := Parse(""); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestFromCents(t *testing.T) {
	a := FromCents(33335)
	if a.String() != "333.35" {
		t.Errorf("Expected 333.35, got %s", a)
	}
	if a.Cents() != 33335 {
		t.Errorf("Expected 33335 cents, got %d", a.Cents())
	}
}

func TestArithmetic(t *testing.T) {
	a := MustParse("100.01")
	b := MustParse("33.33")

	if got := a.Sub(b.MulInt(2)); !got.Equal(MustParse("33.35")) {
		t.Errorf("Expected 33.35, got %s", got)
	}
	if got := b.Add(b).Add(MustParse("33.35")); !got.Equal(a) {
		t.Errorf("Expected %s, got %s", a, got)
	}
}

func TestSignChecks(t *testing.T) {
	if !MustParse("-1,00").IsNegative() {
		t.Error("Expected negative amount")
	}
	if MustParse("0.00").IsNegative() {
		t.Error("Zero is not negative")
	}
	if !Zero.IsZero() {
		t.Error("Expected zero amount")
	}
	if MustParse("5.00").Cmp(MustParse("4.99")) != 1 {
		t.Error("Expected 5.00 > 4.99")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Total Amount `json:"total"`
	}

	data, err := json.Marshal(payload{Total: FromCents(123456)})
	if err != nil {
		t.Fatalf("Failed to marshal amount: %v", err)
	}
	if string(data) != `{"total":1234.56}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var decoded payload
	if err := json.Unmarshal([]byte(`{"total":"99.90"}`), &decoded); err != nil {
		t.Fatalf("Failed to unmarshal quoted amount: %v", err)
	}
	if decoded.Total.Cents() != 9990 {
		t.Errorf("Expected 9990 cents, got %d", decoded.Total.Cents())
	}
	if err := json.Unmarshal([]byte(`{"total":99.9}`), &decoded); err != nil {
		t.Fatalf("Failed to unmarshal numeric amount: %v", err)
	}
	if decoded.Total.Cents() != 9990 {
		t.Errorf("Expected 9990 cents, got %d", decoded.Total.Cents())
	}
}

func TestScan(t *testing.T) {
	var a Amount
	if err := a.Scan("333.34"); err != nil {
		t.Fatalf("Failed to scan string: %v", err)
	}
	if a.Cents() != 33334 {
		t.Errorf("Expected 33334 cents, got %d", a.Cents())
	}

	if err := a.Scan(nil); err != nil {
		t.Fatalf("Failed to scan nil: %v", err)
	}
	if !a.IsZero() {
		t.Errorf("Expected zero after nil scan, got %s", a)
	}
}
