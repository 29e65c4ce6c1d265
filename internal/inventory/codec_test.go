package inventory

import (
	"reflect"
	"testing"
)

func TestSplitLinesTrimsAndDropsEmpty(t *testing.T) {
	raw := "a|1\r\n  b|2  \n\n\nc|3\r"
	got := SplitLines(raw)
	want := []string{"a|1", "b|2", "c|3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected lines: %v", got)
	}
}

func TestSplitLinesEmptyInput(t *testing.T) {
	if got := SplitLines(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := SplitLines("  \n\t\n"); got != nil {
		t.Fatalf("expected nil for whitespace input, got %v", got)
	}
}

func TestJoinSplitRoundTrip(t *testing.T) {
	lines := []string{"alpha|one", "beta|two", "gamma"}
	body := JoinLines(lines)
	if got := SplitLines(body); !reflect.DeepEqual(got, lines) {
		t.Fatalf("round trip mismatch: %v", got)
	}
}

func TestLineKey(t *testing.T) {
	cases := map[string]string{
		"user@example.com|hunter2": "user@example.com",
		"plain-key":                "plain-key",
		"a|b|c":                    "a",
		"|leading":                 "",
	}
	for line, want := range cases {
		if got := LineKey(line); got != want {
			t.Errorf("LineKey(%q) = %q, want %q", line, got, want)
		}
	}
}

func TestLineAt(t *testing.T) {
	lines := []string{"a", "b"}
	if line, ok := LineAt(lines, 1); !ok || line != "b" {
		t.Fatalf("expected b, got %q ok=%v", line, ok)
	}
	if _, ok := LineAt(lines, 2); ok {
		t.Fatal("expected out-of-range index to miss")
	}
	if _, ok := LineAt(lines, -1); ok {
		t.Fatal("expected negative index to miss")
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum([]byte("a|1\nb|2"))
	b := Checksum([]byte("a|1\nb|2"))
	if a != b {
		t.Fatal("checksum should be deterministic")
	}
	if a == Checksum([]byte("a|1\nb|3")) {
		t.Fatal("different bodies should not collide")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 length 64, got %d", len(a))
	}
}
