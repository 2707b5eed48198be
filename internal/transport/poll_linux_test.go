//go:build linux
// +build linux

package transport

import (
	"math"
	"testing"
	"time"
)

func TestPollMillis(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want int
	}{
		{-time.Second, 0},
		{0, 0},
		{time.Nanosecond, 1},
		{999 * time.Microsecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{5 * time.Second, 5000},
		{30 * 24 * time.Hour, math.MaxInt32},
	}
	for _, c := range cases {
		if got := pollMillis(c.in); got != c.want {
			t.Errorf("pollMillis(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
