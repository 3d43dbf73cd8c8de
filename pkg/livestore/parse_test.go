package livestore

import (
	"testing"
	"time"
)

func TestIsSQLNone(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"NULL", true},
		{"null", true},
		{"None", true},
		{"  NONE  ", true},
		{"0", false},
		{"ADS_1", false},
	}
	for _, tc := range cases {
		if got := IsSQLNone(tc.value); got != tc.want {
			t.Errorf("IsSQLNone(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	parsed, ok := ParseTime("2025-06-02 09:30:15")
	if !ok {
		t.Fatal("expected valid datetime")
	}
	if parsed.Hour() != 9 || parsed.Minute() != 30 || parsed.Second() != 15 {
		t.Errorf("unexpected time: %v", parsed)
	}

	if _, ok := ParseTime("NULL"); ok {
		t.Error("NULL must not parse")
	}
	if _, ok := ParseTime("09:30:15"); ok {
		t.Error("bare clock time is not a datetime")
	}
	if _, ok := ParseTime("2025-06-02T09:30:15"); ok {
		t.Error("ISO T separator is not used in the live database")
	}
}

func TestParseDuration(t *testing.T) {
	d, ok := ParseDuration("02:15:30")
	if !ok {
		t.Fatal("expected valid duration")
	}
	want := 2*time.Hour + 15*time.Minute + 30*time.Second
	if d != want {
		t.Errorf("got %v, want %v", d, want)
	}

	if _, ok := ParseDuration("2025-06-02 09:30:15"); ok {
		t.Error("datetime is not a duration")
	}
}

func TestParseMinutes(t *testing.T) {
	d, ok := ParseMinutes("195.87")
	if !ok {
		t.Fatal("expected valid minute count")
	}
	want := time.Duration(195.87 * float64(time.Minute))
	if d != want {
		t.Errorf("got %v, want %v", d, want)
	}

	if d, ok := ParseMinutes("NONE"); ok || d != 0 {
		t.Errorf("NONE must yield zero, got %v ok=%v", d, ok)
	}
}

func TestParseNumbers(t *testing.T) {
	if got := ParseFloat("20.5"); got != 20.5 {
		t.Errorf("ParseFloat = %v", got)
	}
	if got := ParseFloat("NULL"); got != 0 {
		t.Errorf("ParseFloat(NULL) = %v", got)
	}
	if got := ParseInt("3"); got != 3 {
		t.Errorf("ParseInt = %v", got)
	}
	if got := ParseInt("three"); got != 0 {
		t.Errorf("ParseInt(garbage) = %v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	d := 26*time.Hour + 3*time.Minute + 4*time.Second
	if got := FormatDuration(d); got != "26:03:04" {
		t.Errorf("FormatDuration = %q", got)
	}

	back, ok := ParseDuration(FormatDuration(90 * time.Minute))
	if !ok || back != 90*time.Minute {
		t.Errorf("round trip failed: %v ok=%v", back, ok)
	}
}

func TestFormatTimeRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 30, 15, 0, time.Local)
	back, ok := ParseTime(FormatTime(now))
	if !ok || !back.Equal(now) {
		t.Errorf("round trip failed: %v ok=%v", back, ok)
	}
}
