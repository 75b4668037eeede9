package workflow

import (
	"testing"
	"time"
)

func TestBackoffForAttempt_DoublesAndCaps(t *testing.T) {
	initial := 5 * time.Second
	cases := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{5, 80 * time.Second},
		{7, 320 * time.Second},
		{8, 10 * time.Minute},  // 640s crosses the cap
		{20, 10 * time.Minute}, // stays capped at the attempt ceiling
	}
	for _, tc := range cases {
		if got := BackoffForAttempt(initial, tc.attempt); got != tc.expected {
			t.Fatalf("BackoffForAttempt(%s, %d) expected %s, got %s",
				initial, tc.attempt, tc.expected, got)
		}
	}
}
