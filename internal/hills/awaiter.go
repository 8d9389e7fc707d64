package hills

import "time"

// awaiterTick bounds each wait so a lost notification can only delay a
// waiter, never strand it.
const awaiterTick = 100 * time.Millisecond

// awaiter is a cooperative wait/notify point used to pace readers against
// compute-task completions.
type awaiter struct {
	ch chan struct{}
}

func newAwaiter() *awaiter {
	return &awaiter{ch: make(chan struct{}, 1)}
}

// DoWait returns as soon as pred reports true. The predicate is
// re-evaluated after every notification and at least every awaiterTick.
func (a *awaiter) DoWait(pred func() bool) {
	for !pred() {
		timer := time.NewTimer(awaiterTick)
		select {
		case <-a.ch:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// DoNotify wakes one waiter. Never blocks; a notification that finds the
// slot full is redundant anyway.
func (a *awaiter) DoNotify() {
	select {
	case a.ch <- struct{}{}:
	default:
	}
}
