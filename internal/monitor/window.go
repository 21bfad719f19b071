package monitor

import "time"

// slidingWindow counts timestamps inside a trailing span using a
// fixed-capacity ring buffer, so memory stays bounded between evictions.
// All probes share the same pattern: observe, compare to threshold, reset
// on trip so one sustained burst fires exactly once.
type slidingWindow struct {
	stamps []time.Time
	head   int // index of the oldest entry
	count  int
	span   time.Duration
}

func newSlidingWindow(capacity int, span time.Duration) *slidingWindow {
	return &slidingWindow{
		stamps: make([]time.Time, capacity),
		span:   span,
	}
}

// observe records a timestamp, evicts entries older than the span, and
// returns how many timestamps remain inside the window.
func (w *slidingWindow) observe(now time.Time) int {
	cutoff := now.Add(-w.span)
	for w.count > 0 && w.stamps[w.head].Before(cutoff) {
		w.head = (w.head + 1) % len(w.stamps)
		w.count--
	}

	if w.count == len(w.stamps) {
		w.head = (w.head + 1) % len(w.stamps)
		w.count--
	}
	w.stamps[(w.head+w.count)%len(w.stamps)] = now
	w.count++

	return w.count
}

// reset empties the window so a tripped detector re-arms from zero.
func (w *slidingWindow) reset() {
	w.head = 0
	w.count = 0
}
