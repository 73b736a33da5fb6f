// Package timeutil provides clock injection and small helpers for
// time-related operations.
package timeutil

import (
	"fmt"
	"time"
)

const secondsInAMinute = 60

// Clock abstracts wall-clock reads so that session bookkeeping can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the real wall clock.
var System Clock = systemClock{}

// SecsToMinsAndSecs expresses a seconds value in minutes and seconds.
func SecsToMinsAndSecs(val int) (mins, secs int) {
	mins = val / secondsInAMinute
	secs = val % secondsInAMinute

	return
}

// FormatSeconds renders a seconds value as MM:SS for countdown display.
func FormatSeconds(val int) string {
	mins, secs := SecsToMinsAndSecs(val)

	return fmt.Sprintf("%02d:%02d", mins, secs)
}
