package dates

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseAndString(t *testing.T) {
	d, err := Parse("2024-03-05")
	if err != nil {
		t.Fatalf("Failed to parse date: %v", err)
	}
	if d.Year != 2024 || d.Month != time.March || d.Day != 5 {
		t.Errorf("Expected 2024-03-05, got %v", d)
	}
	if d.String() != "2024-03-05" {
		t.Errorf("Expected string 2024-03-05, got %s", d.String())
	}

	if _, err := Parse("05/03/2024"); err == nil {
		t.Error("Expected error for non-ISO date")
	}
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		name     string
		start    string
		months   int
		expected string
	}{
		{"plain month step", "2024-04-27", 1, "2024-05-27"},
		{"year rollover", "2024-11-15", 3, "2025-02-15"},
		{"clamp to leap february", "2024-01-31", 1, "2024-02-29"},
		{"clamp to short february", "2025-01-31", 1, "2025-02-28"},
		{"clamp to 30-day month", "2024-03-31", 1, "2024-04-30"},
		{"day preserved after clamped month", "2024-01-31", 2, "2024-03-31"},
		{"negative offset", "2024-03-31", -1, "2024-02-29"},
		{"negative year rollover", "2024-01-15", -2, "2023-11-15"},
		{"zero offset", "2024-06-10", 0, "2024-06-10"},
		{"many months", "2024-01-31", 13, "2025-02-28"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MustParse(tc.start).AddMonths(tc.months)
			if got.String() != tc.expected {
				t.Errorf("%s + %d months: expected %s, got %s", tc.start, tc.months, tc.expected, got)
			}
		})
	}
}

func TestWithDay(t *testing.T) {
	d := MustParse("2024-02-10").WithDay(31)
	if d.String() != "2024-02-29" {
		t.Errorf("Expected clamp to 2024-02-29, got %s", d)
	}

	d = MustParse("2024-04-10").WithDay(15)
	if d.String() != "2024-04-15" {
		t.Errorf("Expected 2024-04-15, got %s", d)
	}
}

func TestComparisons(t *testing.T) {
	a := MustParse("2024-03-05")
	b := MustParse("2024-03-06")

	if !a.Before(b) {
		t.Error("Expected a before b")
	}
	if !b.After(a) {
		t.Error("Expected b after a")
	}
	if a.Before(a) || a.After(a) {
		t.Error("A date must not be before or after itself")
	}
	if !a.Equal(MustParse("2024-03-05")) {
		t.Error("Expected equal dates")
	}
}

func TestFromTimeDropsTimeOfDay(t *testing.T) {
	// A timestamp late at night must keep its local calendar day.
	loc := time.FixedZone("BRT", -3*60*60)
	ts := time.Date(2024, time.March, 5, 23, 30, 0, 0, loc)
	d := FromTime(ts)
	if d.String() != "2024-03-05" {
		t.Errorf("Expected 2024-03-05, got %s", d)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Due Date `json:"due"`
	}

	data, err := json.Marshal(payload{Due: MustParse("2024-04-27")})
	if err != nil {
		t.Fatalf("Failed to marshal date: %v", err)
	}
	if string(data) != `{"due":"2024-04-27"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var decoded payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal date: %v", err)
	}
	if !decoded.Due.Equal(MustParse("2024-04-27")) {
		t.Errorf("Expected 2024-04-27, got %s", decoded.Due)
	}
}

func TestDaysInMonth(t *testing.T) {
	if got := DaysInMonth(2024, time.February); got != 29 {
		t.Errorf("Expected 29 days in Feb 2024, got %d", got)
	}
	if got := DaysInMonth(2025, time.February); got != 28 {
		t.Errorf("Expected 28 days in Feb 2025, got %d", got)
	}
	if got := DaysInMonth(2024, time.December); got != 31 {
		t.Errorf("Expected 31 days in Dec 2024, got %d", got)
	}
}
