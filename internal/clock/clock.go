package clock

import "time"

// Clock abstracts wall time so tariff snapshots and session close times can be
// pinned in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
